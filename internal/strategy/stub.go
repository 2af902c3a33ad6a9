package strategy

import "backtest-lab/internal/domain"

// Stub is a deterministic test double: its DecideFunc is invoked verbatim.
type Stub struct {
	StubName   string
	Lookback   int
	DecideFunc func(window []domain.Candle, interval string, tpRatio, slRatio float64) (*Decision, error)
}

// Name implements Strategy.
func (s *Stub) Name() string {
	if s.StubName == "" {
		return "stub"
	}
	return s.StubName
}

// RequiredLookback implements Strategy.
func (s *Stub) RequiredLookback() int {
	if s.Lookback <= 0 {
		return 1
	}
	return s.Lookback
}

// Decide implements Strategy.
func (s *Stub) Decide(window []domain.Candle, interval string, tpRatio, slRatio float64) (*Decision, error) {
	if s.DecideFunc == nil {
		return &Decision{Signal: SignalNone}, nil
	}
	return s.DecideFunc(window, interval, tpRatio, slRatio)
}

var _ Strategy = (*Stub)(nil)
