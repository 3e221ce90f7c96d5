package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
)

// Achievement describes a tier transition for a trader.
type Achievement struct {
	TraderID     string     `json:"trader_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PreviousTier medal.Tier `json:"previous_tier"`
	NewTier      medal.Tier `json:"new_tier"`
	WinRate      *float64   `json:"win_rate"`
	TradeCount   int        `json:"trade_count"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Upgrade reports whether the new tier ranks above the previous one.
func (a Achievement) Upgrade() bool {
	return a.NewTier > a.PreviousTier
}

// Notifier delivers achievement notifications. Delivery is best effort.
type Notifier interface {
	NotifyTierChange(ctx context.Context, a Achievement) error
}

// NopNotifier drops every notification. Used when the webhook is disabled.
type NopNotifier struct {
	logger *zap.Logger
}

// NewNopNotifier returns a notifier that only logs at debug level.
func NewNopNotifier(logger *zap.Logger) *NopNotifier {
	return &NopNotifier{logger: logger.Named("notifier")}
}

func (n *NopNotifier) NotifyTierChange(_ context.Context, a Achievement) error {
	n.logger.Debug("Notifications disabled, dropping achievement",
		zap.String("trader_id", a.TraderID),
		zap.Stringer("new_tier", a.NewTier))
	return nil
}
