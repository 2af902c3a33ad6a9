package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

func windowFromCloses(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			OpenTime: int64(i+1) * 1000,
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   1,
		}
	}
	return out
}

func TestFromSpec(t *testing.T) {
	s, err := FromSpec(domain.StrategySpec{Name: "momentum", Params: map[string]float64{"period": 5}})
	require.NoError(t, err)
	assert.Equal(t, "momentum_5", s.Name())
	assert.Equal(t, 7, s.RequiredLookback())

	s, err = FromSpec(domain.StrategySpec{Name: "peak_ema_reversal"})
	require.NoError(t, err)
	assert.Equal(t, "peak_ema_reversal_21", s.Name())

	_, err = FromSpec(domain.StrategySpec{Name: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestMomentum_AcceleratingUptrendBuys(t *testing.T) {
	s := NewMomentum(3)

	// Gains widen bar over bar, so 3-bar momentum is positive and rising.
	w := windowFromCloses(100, 101, 102, 104, 107, 111)
	d, err := s.Decide(w, "1h", 2, 1)
	require.NoError(t, err)

	assert.Equal(t, SignalBuy, d.Signal)
	assert.Equal(t, domain.DirectionLong, d.Direction)
	assert.Equal(t, 111.0, d.EntryPrice)
	assert.InDelta(t, 111*1.02, d.TPPrice, 1e-9)
	assert.InDelta(t, 111*0.99, d.SLPrice, 1e-9)
}

func TestMomentum_AcceleratingDowntrendSells(t *testing.T) {
	s := NewMomentum(3)

	w := windowFromCloses(111, 110, 109, 107, 104, 100)
	d, err := s.Decide(w, "1h", 2, 1)
	require.NoError(t, err)

	assert.Equal(t, SignalSell, d.Signal)
	assert.Equal(t, domain.DirectionShort, d.Direction)
	assert.InDelta(t, 100*0.98, d.TPPrice, 1e-9)
	assert.InDelta(t, 100*1.01, d.SLPrice, 1e-9)
}

func TestMomentum_FlatMarketPasses(t *testing.T) {
	s := NewMomentum(3)

	w := windowFromCloses(100, 100, 100, 100, 100, 100)
	d, err := s.Decide(w, "1h", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, SignalNone, d.Signal)
}

func TestMomentum_ShortWindowPasses(t *testing.T) {
	s := NewMomentum(10)

	d, err := s.Decide(windowFromCloses(100, 101), "1h", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, SignalNone, d.Signal)
}

func TestPeakEMAReversal_ReclaimBuys(t *testing.T) {
	s := NewPeakEMAReversal(3)

	// Price sags below its EMA, then closes back above it on the last bar.
	w := windowFromCloses(100, 100, 100, 96, 92, 104)
	d, err := s.Decide(w, "1h", 2, 1)
	require.NoError(t, err)

	require.Equal(t, SignalBuy, d.Signal)
	assert.Equal(t, domain.DirectionLong, d.Direction)
	assert.Equal(t, 104.0, d.EntryPrice)
}

func TestPeakEMAReversal_NoCrossPasses(t *testing.T) {
	s := NewPeakEMAReversal(3)

	// Steadily rising closes stay above the EMA the whole time: no reclaim.
	w := windowFromCloses(100, 101, 102, 103, 104, 105)
	d, err := s.Decide(w, "1h", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, SignalNone, d.Signal)
}

func TestStub_Defaults(t *testing.T) {
	s := &Stub{}

	assert.Equal(t, "stub", s.Name())
	assert.Equal(t, 1, s.RequiredLookback())

	d, err := s.Decide(nil, "1h", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, SignalNone, d.Signal)
}
