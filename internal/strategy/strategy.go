// Package strategy defines the opaque decision interface backtests consume
// and a factory resolving built-in strategies by name.
package strategy

import "backtest-lab/internal/domain"

// Signal values returned by Decide.
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalNone = "NO"
)

// Decision is one strategy verdict for the newest bar of a window.
type Decision struct {
	Signal     string
	EntryPrice float64
	TPPrice    float64
	SLPrice    float64
	Direction  domain.Direction
}

// Strategy produces trade decisions from candle windows. Implementations
// must be pure with respect to engine state: Decide is called concurrently
// for different symbols and must not retain or mutate the window.
type Strategy interface {
	// Decide evaluates the newest bar of the window. tpRatio/slRatio are
	// the requested take-profit and stop-loss distances in percent.
	Decide(window []domain.Candle, interval string, tpRatio, slRatio float64) (*Decision, error)

	// RequiredLookback returns the minimum bars needed before Decide is
	// meaningful.
	RequiredLookback() int

	// Name returns the strategy identifier.
	Name() string
}

// bracket derives TP/SL prices from an entry and percent distances,
// honoring direction.
func bracket(entry, tpRatio, slRatio float64, dir domain.Direction) (tp, sl float64) {
	if dir == domain.DirectionShort {
		return entry * (1 - tpRatio/100), entry * (1 + slRatio/100)
	}
	return entry * (1 + tpRatio/100), entry * (1 - slRatio/100)
}

// closes extracts the close series from a window.
func closes(window []domain.Candle) []float64 {
	out := make([]float64, len(window))
	for i := range window {
		out[i] = window[i].Close
	}
	return out
}
