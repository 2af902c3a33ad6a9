package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

func TestAggressivePolicy_FillsWholeEvent(t *testing.T) {
	p := NewAggressivePolicy(StaticFee(0.001), FixedSlippage(0.01))

	ev := tradeEvent("BTCUSDT", 1, 100, 2, domain.EventOpen)
	fills := p.Fill(ev, nil)

	require.Len(t, fills, 1)
	assert.Equal(t, 2.0, fills[0].Qty)
	assert.InDelta(t, 101.0, fills[0].ExecPrice, 1e-9) // adverse for a buy
	assert.InDelta(t, 202.0*0.001, fills[0].FeeCash, 1e-9)
	assert.Equal(t, SideBuy, fills[0].Side)
}

func TestAggressivePolicy_SellSlipsDown(t *testing.T) {
	p := NewAggressivePolicy(StaticFee(0), FixedSlippage(0.01))

	fills := p.Fill(tradeEvent("BTCUSDT", 1, 100, -1, domain.EventClose), nil)

	require.Len(t, fills, 1)
	assert.InDelta(t, 99.0, fills[0].ExecPrice, 1e-9)
	assert.Equal(t, SideSell, fills[0].Side)
}

func TestDepthPolicy_WalksLevelsAndOverflows(t *testing.T) {
	p := NewDepthPolicy(5, StaticFee(0), ZeroSlippage())
	book := &OrderBook{
		Asks: []BookLevel{{Price: 100, Size: 0.5}, {Price: 101, Size: 0.3}},
	}

	fills := p.Fill(tradeEvent("BTCUSDT", 1, 100, 1.0, domain.EventOpen), book)

	require.Len(t, fills, 3)
	assert.Equal(t, 0.5, fills[0].Qty)
	assert.Equal(t, 100.0, fills[0].ExecPrice)
	assert.Equal(t, 0.3, fills[1].Qty)
	assert.Equal(t, 101.0, fills[1].ExecPrice)

	// Remainder fills at the worst level seen and is flagged.
	assert.InDelta(t, 0.2, fills[2].Qty, 1e-9)
	assert.Equal(t, 101.0, fills[2].ExecPrice)
	assert.Equal(t, true, fills[2].Meta[domain.MetaOverflow])
}

func TestDepthPolicy_QuantityConservation(t *testing.T) {
	p := NewDepthPolicy(3, StaticFee(0.001), FixedSlippage(0.002))
	book := &OrderBook{
		Asks: []BookLevel{{Price: 100, Size: 0.4}, {Price: 100.5, Size: 0.4}, {Price: 101, Size: 0.4}},
		Bids: []BookLevel{{Price: 99.5, Size: 0.6}, {Price: 99, Size: 0.2}},
	}

	for _, qty := range []float64{0.3, 1.0, 2.5, -0.5, -1.7} {
		fills := p.Fill(tradeEvent("BTCUSDT", 1, 100, qty, domain.EventOpen), book)
		var total float64
		for _, f := range fills {
			total += f.Qty
		}
		assert.InDelta(t, qty, total, 1e-9, "qty=%v", qty)
	}
}

func TestDepthPolicy_NoBookDegradesToAggressive(t *testing.T) {
	p := NewDepthPolicy(5, StaticFee(0), ZeroSlippage())

	fills := p.Fill(tradeEvent("BTCUSDT", 1, 100, 1, domain.EventOpen), nil)

	require.Len(t, fills, 1)
	assert.Equal(t, 1.0, fills[0].Qty)
	assert.Equal(t, 100.0, fills[0].ExecPrice)
}

func TestFillPolicyFromSpec(t *testing.T) {
	fee, slip := StaticFee(0), ZeroSlippage()

	p, err := FillPolicyFromSpec(domain.PolicySpec{Name: "aggressive"}, fee, slip)
	require.NoError(t, err)
	assert.IsType(t, &AggressivePolicy{}, p)

	p, err = FillPolicyFromSpec(domain.PolicySpec{Name: "depth", Params: map[string]float64{"depth": 3}}, fee, slip)
	require.NoError(t, err)
	require.IsType(t, &DepthPolicy{}, p)
	assert.Equal(t, 3, p.(*DepthPolicy).Depth)

	_, err = FillPolicyFromSpec(domain.PolicySpec{Name: "bogus"}, fee, slip)
	assert.ErrorIs(t, err, ErrUnknownFillPolicy)
}

func TestCostModelsFromSpec(t *testing.T) {
	_, err := FeeFromSpec(domain.PolicySpec{Name: "nope"})
	assert.ErrorIs(t, err, ErrUnknownFeeModel)

	_, err = SlippageFromSpec(domain.PolicySpec{Name: "random"}, 0)
	assert.ErrorIs(t, err, ErrMissingSeed)

	slip, err := SlippageFromSpec(domain.PolicySpec{Name: "random", Params: map[string]float64{"max_pct": 0.01}}, 42)
	require.NoError(t, err)
	ev := tradeEvent("BTCUSDT", 1, 100, 1, domain.EventOpen)
	v := slip(ev)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Less(t, v, 0.01)
}
