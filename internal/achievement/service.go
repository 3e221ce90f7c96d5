package achievement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xtradermorph/traders-journal-sub000/internal/database"
	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
	"github.com/xtradermorph/traders-journal-sub000/internal/metrics"
	"github.com/xtradermorph/traders-journal-sub000/internal/models"
	"github.com/xtradermorph/traders-journal-sub000/internal/notify"
)

// Store is the subset of the journal database the service needs.
type Store interface {
	GetTrader(ctx context.Context, id string) (*models.Trader, error)
	ListTraderIDs(ctx context.Context) ([]string, error)
	TradesForTrader(ctx context.Context, traderID string, since *time.Time) ([]models.Trade, error)
	LastMedal(ctx context.Context, traderID string) (*models.MedalRecord, error)
	SaveMedal(ctx context.Context, record *models.MedalRecord) error
}

// Options tunes the service.
type Options struct {
	// SweepConcurrency bounds how many traders EvaluateAll processes at once.
	SweepConcurrency int
	// NotifyTimeout bounds a single notification delivery.
	NotifyTimeout time.Duration
}

// Service recomputes trader medals and notifies on tier transitions.
type Service struct {
	logger   *zap.Logger
	store    Store
	notifier notify.Notifier
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time

	locks    sync.Map // trader ID -> *sync.Mutex
	inflight sync.WaitGroup
}

// Result is the outcome of evaluating one trader.
type Result struct {
	TraderID     string         `json:"trader_id"`
	Progress     medal.Progress `json:"progress"`
	PreviousTier medal.Tier     `json:"previous_tier"`
	Changed      bool           `json:"changed"`
}

// Summary is the outcome of a sweep over all traders.
type Summary struct {
	Evaluated int           `json:"evaluated"`
	Changed   int           `json:"changed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// NewService creates a new achievement service.
func NewService(logger *zap.Logger, store Store, notifier notify.Notifier, m *metrics.Metrics, opts Options) *Service {
	if opts.SweepConcurrency <= 0 {
		opts.SweepConcurrency = 1
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Service{
		logger:   logger.Named("achievement"),
		store:    store,
		notifier: notifier,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *Service) lockFor(traderID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(traderID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Evaluate recomputes a trader's tier from their trade history and compares
// it with the tier last shown. A change triggers an asynchronous notification.
func (s *Service) Evaluate(ctx context.Context, traderID string) (Result, error) {
	mu := s.lockFor(traderID)
	mu.Lock()
	defer mu.Unlock()

	trader, err := s.store.GetTrader(ctx, traderID)
	if err != nil {
		return Result{}, fmt.Errorf("could not load trader %s: %w", traderID, err)
	}

	trades, err := s.store.TradesForTrader(ctx, traderID, nil)
	if err != nil {
		return Result{}, err
	}
	progress := medal.ProgressFor(models.TradesToMedal(trades))
	s.metrics.ObserveEvaluation(progress.Tier)

	previous := medal.None
	now := s.now().UTC()
	awardedAt := now
	last, err := s.store.LastMedal(ctx, traderID)
	switch {
	case err == nil:
		previous = last.Tier
		if last.Tier == progress.Tier {
			awardedAt = last.AwardedAt
		}
	case errors.Is(err, database.ErrNotFound):
	default:
		return Result{}, fmt.Errorf("could not load last medal for trader %s: %w", traderID, err)
	}

	record := &models.MedalRecord{
		TraderID:   traderID,
		Tier:       progress.Tier,
		WinRate:    progress.WinRate,
		TradeCount: progress.TradeCount,
		AwardedAt:  awardedAt,
	}
	if err := s.store.SaveMedal(ctx, record); err != nil {
		return Result{}, err
	}

	result := Result{
		TraderID:     traderID,
		Progress:     progress,
		PreviousTier: previous,
		Changed:      progress.Tier != previous,
	}

	if result.Changed {
		s.metrics.ObserveTransition(previous, progress.Tier)
		s.logger.Info("Medal tier changed",
			zap.String("trader_id", traderID),
			zap.Stringer("from", previous),
			zap.Stringer("to", progress.Tier),
			zap.Int("trade_count", progress.TradeCount))

		s.dispatch(notify.Achievement{
			TraderID:     trader.ID,
			Username:     trader.Username,
			Email:        trader.Email,
			PreviousTier: previous,
			NewTier:      progress.Tier,
			WinRate:      progress.WinRate,
			TradeCount:   progress.TradeCount,
			OccurredAt:   now,
		})
	}

	return result, nil
}

// dispatch delivers the notification in the background. Failures are logged
// and counted but never reach the caller.
func (s *Service) dispatch(a notify.Achievement) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.NotifyTimeout)
		defer cancel()

		if err := s.notifier.NotifyTierChange(ctx, a); err != nil {
			s.metrics.ObserveNotification("failed")
			s.logger.Warn("Failed to deliver achievement notification",
				zap.String("trader_id", a.TraderID),
				zap.Stringer("new_tier", a.NewTier),
				zap.Error(err))
			return
		}
		s.metrics.ObserveNotification("sent")
	}()
}

// Wait blocks until every pending notification has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// EvaluateAll re-evaluates every trader. Individual failures are logged and
// counted; only cancellation or a failure to list traders is returned.
func (s *Service) EvaluateAll(ctx context.Context) (Summary, error) {
	start := s.now()

	ids, err := s.store.ListTraderIDs(ctx)
	if err != nil {
		return Summary{}, err
	}

	var changed, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.SweepConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := s.Evaluate(gctx, id)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				s.logger.Error("Medal evaluation failed", zap.String("trader_id", id), zap.Error(err))
				return nil
			}
			if res.Changed {
				atomic.AddInt64(&changed, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Evaluated: len(ids),
		Changed:   int(changed),
		Failed:    int(failed),
		Duration:  s.now().Sub(start),
	}
	s.metrics.ObserveSweep(summary.Duration.Seconds())
	s.logger.Info("Medal sweep complete",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("changed", summary.Changed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// SweepJob adapts EvaluateAll to the scheduler's job interface.
type SweepJob struct {
	Service *Service
	Timeout time.Duration
}

func (j SweepJob) Name() string {
	return "medal-sweep"
}

func (j SweepJob) Run() error {
	ctx := context.Background()
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	_, err := j.Service.EvaluateAll(ctx)
	return err
}
