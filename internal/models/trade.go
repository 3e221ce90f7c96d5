package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
)

const (
	DirectionLong  = "LONG"
	DirectionShort = "SHORT"
)

// Trade represents a trade logged by a trader in their journal.
type Trade struct {
	gorm.Model
	TraderID   string          `gorm:"index;not null" json:"trader_id"`
	Symbol     string          `gorm:"not null" json:"symbol"`
	Direction  string          `json:"direction"` // "LONG" or "SHORT"
	EntryPrice decimal.Decimal `gorm:"type:numeric" json:"entry_price"`
	ExitPrice  decimal.Decimal `gorm:"type:numeric" json:"exit_price"`
	Quantity   decimal.Decimal `gorm:"type:numeric" json:"quantity"`
	Profit     decimal.Decimal `gorm:"type:numeric" json:"profit"` // signed outcome
	TradedAt   time.Time       `gorm:"index" json:"traded_at"`
	Notes      string          `json:"notes,omitempty"`
}

// Outcome adapts the trade to the shape the medal calculator reads.
func (t Trade) Outcome() medal.Trade {
	return medal.Trade{Outcome: t.Profit.InexactFloat64()}
}

// TradesToMedal adapts a slice of journal trades for medal classification.
func TradesToMedal(trades []Trade) []medal.Trade {
	out := make([]medal.Trade, len(trades))
	for i, t := range trades {
		out[i] = t.Outcome()
	}
	return out
}
