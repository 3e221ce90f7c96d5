package medal

import "math"

// MinSampleSize is the number of trades a trader needs before any tier is awarded.
// It keeps a couple of lucky trades from showing up as a top-tier record.
const MinSampleSize = 10

// Trade is the only part of a trade record the calculator reads.
type Trade struct {
	// Outcome is the signed profit/loss. Only values strictly above zero count as wins.
	Outcome float64
}

// Threshold is the minimum win rate (in percent) that earns a tier.
type Threshold struct {
	Tier       Tier    `json:"tier"`
	MinWinRate float64 `json:"min_win_rate"`
}

// ladder is ordered from the highest tier down; the first match wins.
var ladder = []Threshold{
	{Tier: Diamond, MinWinRate: 91},
	{Tier: Platinum, MinWinRate: 86},
	{Tier: Gold, MinWinRate: 80},
	{Tier: Silver, MinWinRate: 70},
	{Tier: Bronze, MinWinRate: 60},
}

// Thresholds returns a copy of the tier ladder, highest tier first.
func Thresholds() []Threshold {
	out := make([]Threshold, len(ladder))
	copy(out, ladder)
	return out
}

// TierFromWinRate classifies a win-rate percentage.
// A nil, NaN or out-of-range [0, 100] value yields None.
func TierFromWinRate(winRate *float64) Tier {
	if winRate == nil {
		return None
	}
	w := *winRate
	if math.IsNaN(w) || w < 0 || w > 100 {
		return None
	}
	for _, th := range ladder {
		if w >= th.MinWinRate {
			return th.Tier
		}
	}
	return None
}

// WinRate returns the percentage of trades with a positive outcome.
// It returns nil when there are fewer than MinSampleSize trades.
func WinRate(trades []Trade) *float64 {
	if len(trades) < MinSampleSize {
		return nil
	}
	wins := 0
	for _, t := range trades {
		if t.Outcome > 0 {
			wins++
		}
	}
	rate := float64(wins) / float64(len(trades)) * 100
	return &rate
}

// TierFromTrades classifies a trade history. Histories shorter than
// MinSampleSize always yield None.
func TierFromTrades(trades []Trade) Tier {
	return TierFromWinRate(WinRate(trades))
}

// NextTier returns the tier above t and the win rate needed to reach it.
// ok is false when t is already the top tier.
func NextTier(t Tier) (next Tier, minWinRate float64, ok bool) {
	for i := len(ladder) - 1; i >= 0; i-- {
		if ladder[i].Tier > t {
			return ladder[i].Tier, ladder[i].MinWinRate, true
		}
	}
	return t, 0, false
}

// Progress describes where a trader stands on the medal ladder.
type Progress struct {
	Tier          Tier     `json:"tier"`
	WinRate       *float64 `json:"win_rate"`
	TradeCount    int      `json:"trade_count"`
	TradesNeeded  int      `json:"trades_needed"`
	Next          *Tier    `json:"next_tier,omitempty"`
	NextThreshold *float64 `json:"next_threshold,omitempty"`
}

// ProgressFor computes the current tier of a trade history together with
// what it takes to reach the next one.
func ProgressFor(trades []Trade) Progress {
	rate := WinRate(trades)
	p := Progress{
		Tier:       TierFromWinRate(rate),
		WinRate:    rate,
		TradeCount: len(trades),
	}
	if len(trades) < MinSampleSize {
		p.TradesNeeded = MinSampleSize - len(trades)
	}
	if next, threshold, ok := NextTier(p.Tier); ok {
		p.Next = &next
		p.NextThreshold = &threshold
	}
	return p
}
