package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"backtest-lab/internal/domain"
)

// Momentum goes long on positive, accelerating momentum and short on
// negative, accelerating momentum.
type Momentum struct {
	Period int
}

// NewMomentum creates the strategy with the given momentum period.
func NewMomentum(period int) *Momentum {
	if period <= 0 {
		period = 10
	}
	return &Momentum{Period: period}
}

// Name implements Strategy.
func (s *Momentum) Name() string {
	return fmt.Sprintf("momentum_%d", s.Period)
}

// RequiredLookback implements Strategy.
func (s *Momentum) RequiredLookback() int {
	return s.Period + 2
}

// Decide implements Strategy.
func (s *Momentum) Decide(window []domain.Candle, _ string, tpRatio, slRatio float64) (*Decision, error) {
	if len(window) < s.RequiredLookback() {
		return &Decision{Signal: SignalNone}, nil
	}

	mom := talib.Mom(closes(window), s.Period)
	last := len(window) - 1
	entry := window[last].Close

	switch {
	case mom[last] > 0 && mom[last] > mom[last-1]:
		tp, sl := bracket(entry, tpRatio, slRatio, domain.DirectionLong)
		return &Decision{Signal: SignalBuy, EntryPrice: entry, TPPrice: tp, SLPrice: sl, Direction: domain.DirectionLong}, nil
	case mom[last] < 0 && mom[last] < mom[last-1]:
		tp, sl := bracket(entry, tpRatio, slRatio, domain.DirectionShort)
		return &Decision{Signal: SignalSell, EntryPrice: entry, TPPrice: tp, SLPrice: sl, Direction: domain.DirectionShort}, nil
	default:
		return &Decision{Signal: SignalNone}, nil
	}
}

var _ Strategy = (*Momentum)(nil)
