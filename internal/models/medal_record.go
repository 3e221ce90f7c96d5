package models

import (
	"time"

	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
)

// MedalRecord is the last tier shown for a trader. It is only a cache used to
// detect tier transitions; the tier itself is always recomputed from trades.
// There is at most one row per trader.
type MedalRecord struct {
	TraderID   string     `gorm:"primaryKey" json:"trader_id"`
	Tier       medal.Tier `gorm:"not null;default:0" json:"tier"`
	WinRate    *float64   `json:"win_rate"`
	TradeCount int        `json:"trade_count"`
	AwardedAt  time.Time  `json:"awarded_at"`
}
