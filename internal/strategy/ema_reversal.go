package strategy

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"backtest-lab/internal/domain"
)

// PeakEMAReversal signals a BUY when price reclaims its EMA after trading
// below it, a mean-reversion entry off a local trough.
type PeakEMAReversal struct {
	Period int
}

// NewPeakEMAReversal creates the strategy with the given EMA period.
func NewPeakEMAReversal(period int) *PeakEMAReversal {
	if period <= 0 {
		period = 21
	}
	return &PeakEMAReversal{Period: period}
}

// Name implements Strategy.
func (s *PeakEMAReversal) Name() string {
	return fmt.Sprintf("peak_ema_reversal_%d", s.Period)
}

// RequiredLookback implements Strategy.
func (s *PeakEMAReversal) RequiredLookback() int {
	// EMA warmup plus a couple of bars to observe the cross.
	return s.Period + 2
}

// Decide implements Strategy.
func (s *PeakEMAReversal) Decide(window []domain.Candle, _ string, tpRatio, slRatio float64) (*Decision, error) {
	if len(window) < s.RequiredLookback() {
		return &Decision{Signal: SignalNone}, nil
	}

	ema := talib.Ema(closes(window), s.Period)
	last := len(window) - 1

	prevBelow := window[last-1].Close < ema[last-1]
	nowAbove := window[last].Close > ema[last]
	if !(prevBelow && nowAbove) {
		return &Decision{Signal: SignalNone}, nil
	}

	entry := window[last].Close
	tp, sl := bracket(entry, tpRatio, slRatio, domain.DirectionLong)
	return &Decision{
		Signal:     SignalBuy,
		EntryPrice: entry,
		TPPrice:    tp,
		SLPrice:    sl,
		Direction:  domain.DirectionLong,
	}, nil
}

var _ Strategy = (*PeakEMAReversal)(nil)
