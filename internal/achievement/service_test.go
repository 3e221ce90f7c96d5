package achievement

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xtradermorph/traders-journal-sub000/internal/config"
	"github.com/xtradermorph/traders-journal-sub000/internal/database"
	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
	"github.com/xtradermorph/traders-journal-sub000/internal/metrics"
	"github.com/xtradermorph/traders-journal-sub000/internal/models"
	"github.com/xtradermorph/traders-journal-sub000/internal/notify"
)

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyTierChange(ctx context.Context, a notify.Achievement) error {
	args := m.Called(a)
	return args.Error(0)
}

// setupTest creates a service backed by a fresh database and a mock notifier.
func setupTest(t *testing.T) (*Service, *database.Store, *MockNotifier, *metrics.Metrics) {
	db, err := database.NewDatabase(&config.Database{DSN: filepath.Join(t.TempDir(), "journal.db")})
	require.NoError(t, err)

	store := database.NewStore(db)
	notifier := new(MockNotifier)
	m := metrics.New()
	svc := NewService(zap.NewNop(), store, notifier, m, Options{SweepConcurrency: 2, NotifyTimeout: time.Second})
	return svc, store, notifier, m
}

func createTrader(t *testing.T, store *database.Store, username string) *models.Trader {
	trader := &models.Trader{Username: username, Email: username + "@example.com"}
	require.NoError(t, store.CreateTrader(context.Background(), trader))
	return trader
}

// logTrades records wins positive trades followed by losses negative ones.
func logTrades(t *testing.T, store *database.Store, traderID string, wins, losses int) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < wins+losses; i++ {
		profit := decimal.NewFromInt(10)
		if i >= wins {
			profit = decimal.NewFromInt(-10)
		}
		require.NoError(t, store.CreateTrade(ctx, &models.Trade{
			TraderID: traderID,
			Symbol:   "EURUSD",
			Profit:   profit,
			TradedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func tierChange(from, to medal.Tier) any {
	return mock.MatchedBy(func(a notify.Achievement) bool {
		return a.PreviousTier == from && a.NewTier == to
	})
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestEvaluate_NoTradesNoNotification(t *testing.T) {
	svc, store, notifier, _ := setupTest(t)
	trader := createTrader(t, store, "alice")

	res, err := svc.Evaluate(context.Background(), trader.ID)
	svc.Wait()

	require.NoError(t, err)
	assert.Equal(t, medal.None, res.Progress.Tier)
	assert.False(t, res.Changed)
	assert.Equal(t, medal.MinSampleSize, res.Progress.TradesNeeded)
	notifier.AssertNotCalled(t, "NotifyTierChange", mock.Anything)

	record, err := store.LastMedal(context.Background(), trader.ID)
	require.NoError(t, err)
	assert.Equal(t, medal.None, record.Tier)
}

func TestEvaluate_BelowMinimumSample(t *testing.T) {
	svc, store, notifier, _ := setupTest(t)
	trader := createTrader(t, store, "lucky")
	logTrades(t, store, trader.ID, 9, 0)

	res, err := svc.Evaluate(context.Background(), trader.ID)
	svc.Wait()

	require.NoError(t, err)
	assert.Equal(t, medal.None, res.Progress.Tier)
	assert.Nil(t, res.Progress.WinRate)
	notifier.AssertNotCalled(t, "NotifyTierChange", mock.Anything)
}

func TestEvaluate_TierChangeNotifiesOnce(t *testing.T) {
	svc, store, notifier, m := setupTest(t)
	trader := createTrader(t, store, "bob")
	logTrades(t, store, trader.ID, 10, 0)

	notifier.On("NotifyTierChange", mock.MatchedBy(func(a notify.Achievement) bool {
		return a.TraderID == trader.ID &&
			a.Username == "bob" &&
			a.Email == "bob@example.com" &&
			a.PreviousTier == medal.None &&
			a.NewTier == medal.Diamond &&
			a.TradeCount == 10
	})).Return(nil).Once()

	res, err := svc.Evaluate(context.Background(), trader.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, medal.Diamond, res.Progress.Tier)
	assert.Equal(t, medal.None, res.PreviousTier)

	// Same history again: nothing changes, nothing is sent.
	res, err = svc.Evaluate(context.Background(), trader.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	svc.Wait()
	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "NotifyTierChange", 1)
	assert.Contains(t, scrape(t, m), `journal_notifications_total{status="sent"} 1`)
	assert.Contains(t, scrape(t, m), `journal_medal_transitions_total{from="none",to="diamond"} 1`)
}

func TestEvaluate_Downgrade(t *testing.T) {
	svc, store, notifier, _ := setupTest(t)
	trader := createTrader(t, store, "carol")
	logTrades(t, store, trader.ID, 7, 3) // 70% silver

	notifier.On("NotifyTierChange", tierChange(medal.None, medal.Silver)).Return(nil).Once()
	notifier.On("NotifyTierChange", tierChange(medal.Silver, medal.None)).Return(nil).Once()

	res, err := svc.Evaluate(context.Background(), trader.ID)
	require.NoError(t, err)
	assert.Equal(t, medal.Silver, res.Progress.Tier)

	logTrades(t, store, trader.ID, 0, 2) // 7/12 = 58.3%
	res, err = svc.Evaluate(context.Background(), trader.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, medal.Silver, res.PreviousTier)
	assert.Equal(t, medal.None, res.Progress.Tier)

	svc.Wait()
	notifier.AssertExpectations(t)
}

func TestEvaluate_NotificationFailureIsNotFatal(t *testing.T) {
	svc, store, notifier, m := setupTest(t)
	trader := createTrader(t, store, "dave")
	logTrades(t, store, trader.ID, 6, 4)

	notifier.On("NotifyTierChange", tierChange(medal.None, medal.Bronze)).Return(errors.New("smtp down"))

	res, err := svc.Evaluate(context.Background(), trader.ID)
	svc.Wait()

	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, medal.Bronze, res.Progress.Tier)
	assert.Contains(t, scrape(t, m), `journal_notifications_total{status="failed"} 1`)

	record, err := store.LastMedal(context.Background(), trader.ID)
	require.NoError(t, err)
	assert.Equal(t, medal.Bronze, record.Tier)
}

func TestEvaluate_UnknownTrader(t *testing.T) {
	svc, _, _, _ := setupTest(t)

	_, err := svc.Evaluate(context.Background(), "ghost")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestEvaluateAll(t *testing.T) {
	svc, store, notifier, _ := setupTest(t)

	gold := createTrader(t, store, "gold")
	logTrades(t, store, gold.ID, 8, 2)
	platinum := createTrader(t, store, "platinum")
	logTrades(t, store, platinum.ID, 9, 1)
	newbie := createTrader(t, store, "newbie")
	logTrades(t, store, newbie.ID, 3, 0)

	notifier.On("NotifyTierChange", tierChange(medal.None, medal.Gold)).Return(nil).Once()
	notifier.On("NotifyTierChange", tierChange(medal.None, medal.Platinum)).Return(nil).Once()

	summary, err := svc.EvaluateAll(context.Background())
	svc.Wait()

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Evaluated)
	assert.Equal(t, 2, summary.Changed)
	assert.Equal(t, 0, summary.Failed)
	notifier.AssertExpectations(t)

	// A second sweep finds nothing new.
	summary, err = svc.EvaluateAll(context.Background())
	svc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Changed)
	notifier.AssertNumberOfCalls(t, "NotifyTierChange", 2)
}

func TestEvaluateAll_Cancelled(t *testing.T) {
	svc, store, _, _ := setupTest(t)
	createTrader(t, store, "eve")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EvaluateAll(ctx)
	assert.Error(t, err)
}

func TestSweepJob(t *testing.T) {
	svc, store, notifier, _ := setupTest(t)
	trader := createTrader(t, store, "frank")
	logTrades(t, store, trader.ID, 10, 0)
	notifier.On("NotifyTierChange", tierChange(medal.None, medal.Diamond)).Return(nil).Once()

	job := SweepJob{Service: svc, Timeout: time.Minute}
	assert.Equal(t, "medal-sweep", job.Name())
	assert.NoError(t, job.Run())

	svc.Wait()
	notifier.AssertExpectations(t)
}
