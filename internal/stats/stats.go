package stats

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xtradermorph/traders-journal-sub000/internal/medal"
	"github.com/xtradermorph/traders-journal-sub000/internal/models"
)

// Detail holds calculated statistics for a given period.
type Detail struct {
	TotalTrades      int64           `json:"total_trades"`
	ProfitableTrades int64           `json:"profitable_trades"`
	WinRate          float64         `json:"win_rate"` // fraction in [0, 1]
	TotalProfit      decimal.Decimal `json:"total_profit"`
	BestTrade        decimal.Decimal `json:"best_trade"`
	WorstTrade       decimal.Decimal `json:"worst_trade"`
}

// Report is the statistics view of one trader.
type Report struct {
	Since24h Detail         `json:"since_24h"`
	AllTime  Detail         `json:"all_time"`
	Medal    medal.Progress `json:"medal"`
}

// Summarize aggregates the trades at or after since. A zero since covers all trades.
func Summarize(trades []models.Trade, since time.Time) Detail {
	d := Detail{}
	for _, trade := range trades {
		if !since.IsZero() && trade.TradedAt.Before(since) {
			continue
		}
		if d.TotalTrades == 0 || trade.Profit.GreaterThan(d.BestTrade) {
			d.BestTrade = trade.Profit
		}
		if d.TotalTrades == 0 || trade.Profit.LessThan(d.WorstTrade) {
			d.WorstTrade = trade.Profit
		}
		d.TotalTrades++
		if trade.Profit.IsPositive() {
			d.ProfitableTrades++
		}
		d.TotalProfit = d.TotalProfit.Add(trade.Profit)
	}

	if d.TotalTrades > 0 {
		d.WinRate = float64(d.ProfitableTrades) / float64(d.TotalTrades)
	}
	return d
}

// Build computes the full report for a trader's history as of now.
func Build(trades []models.Trade, now time.Time) Report {
	return Report{
		Since24h: Summarize(trades, now.Add(-24*time.Hour)),
		AllTime:  Summarize(trades, time.Time{}),
		Medal:    medal.ProgressFor(models.TradesToMedal(trades)),
	}
}
