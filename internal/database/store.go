package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xtradermorph/traders-journal-sub000/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store provides the journal queries used by the API and the medal service.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateTrader inserts a new trader. The ID is generated when empty.
func (s *Store) CreateTrader(ctx context.Context, trader *models.Trader) error {
	if err := s.db.WithContext(ctx).Create(trader).Error; err != nil {
		return fmt.Errorf("failed to create trader %q: %w", trader.Username, err)
	}
	return nil
}

// GetTrader loads a trader by ID.
func (s *Store) GetTrader(ctx context.Context, id string) (*models.Trader, error) {
	var trader models.Trader
	if err := s.db.WithContext(ctx).First(&trader, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &trader, nil
}

// ListTraders returns all traders ordered by username.
func (s *Store) ListTraders(ctx context.Context) ([]models.Trader, error) {
	var traders []models.Trader
	if err := s.db.WithContext(ctx).Order("username asc").Find(&traders).Error; err != nil {
		return nil, fmt.Errorf("failed to list traders: %w", err)
	}
	return traders, nil
}

// ListTraderIDs returns the IDs of all traders.
func (s *Store) ListTraderIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Trader{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list trader ids: %w", err)
	}
	return ids, nil
}

// CreateTrade records a trade for an existing trader.
func (s *Store) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if _, err := s.GetTrader(ctx, trade.TraderID); err != nil {
		return err
	}
	if trade.TradedAt.IsZero() {
		trade.TradedAt = time.Now()
	}
	trade.TradedAt = trade.TradedAt.UTC()
	if err := s.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade for trader %s: %w", trade.TraderID, err)
	}
	return nil
}

// TradesForTrader returns a trader's trades, most recent first.
// When since is non-nil only trades at or after that time are returned.
func (s *Store) TradesForTrader(ctx context.Context, traderID string, since *time.Time) ([]models.Trade, error) {
	q := s.db.WithContext(ctx).Where("trader_id = ?", traderID)
	if since != nil {
		q = q.Where("traded_at >= ?", since.UTC())
	}

	var trades []models.Trade
	if err := q.Order("traded_at desc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to get trades for trader %s: %w", traderID, err)
	}
	return trades, nil
}

// LastMedal returns the tier last shown for a trader, or ErrNotFound.
func (s *Store) LastMedal(ctx context.Context, traderID string) (*models.MedalRecord, error) {
	var record models.MedalRecord
	if err := s.db.WithContext(ctx).First(&record, "trader_id = ?", traderID).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &record, nil
}

// SaveMedal stores the tier shown for a trader, replacing any previous one.
func (s *Store) SaveMedal(ctx context.Context, record *models.MedalRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trader_id"}},
		UpdateAll: true,
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to save medal for trader %s: %w", record.TraderID, err)
	}
	return nil
}
