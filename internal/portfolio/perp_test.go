package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
)

func TestPerpManager_FundingSettlement(t *testing.T) {
	specs := map[string]ContractSpec{
		"BTCUSDT": {Symbol: "BTCUSDT", Type: ContractLinear, Multiplier: 1, FundingInterval: 1000, MMR: 0.004},
	}
	m := NewPerpManager(newTestManager(Options{}), specs, StaticFunding{RateValue: 0.01})

	// Open 1 @ 100 off the funding grid.
	m.Queue().Push(queuedTradeEvent("BTCUSDT", 500, 1, domain.EventOpen))
	m.OnBar(500, map[string]float64{"BTCUSDT": 100})
	require.InDelta(t, 900.0, m.Cash, 1e-9)

	// Settlement timestamp: a long pays qty*avg*rate.
	m.OnBar(1000, map[string]float64{"BTCUSDT": 100})
	assert.InDelta(t, 899.0, m.Cash, 1e-9)

	// Off-grid bar settles nothing.
	m.OnBar(1500, map[string]float64{"BTCUSDT": 100})
	assert.InDelta(t, 899.0, m.Cash, 1e-9)

	// Position itself is untouched by funding.
	pos := m.Ledger().Position("BTCUSDT")
	assert.Equal(t, 1.0, pos.Qty)
	assert.Equal(t, 100.0, pos.AvgPrice)
}

func TestPerpManager_FundingSettlesOffGridBars(t *testing.T) {
	specs := map[string]ContractSpec{
		"BTCUSDT": {Symbol: "BTCUSDT", Type: ContractLinear, Multiplier: 1, FundingInterval: 1000, MMR: 0.004},
	}
	m := NewPerpManager(newTestManager(Options{}), specs, StaticFunding{RateValue: 0.01})

	// Every bar open sits 500ms off the funding grid.
	m.Queue().Push(queuedTradeEvent("BTCUSDT", 500, 1, domain.EventOpen))
	m.OnBar(500, map[string]float64{"BTCUSDT": 100})
	m.OnBar(1500, map[string]float64{"BTCUSDT": 100})
	require.InDelta(t, 900.0, m.Cash, 1e-9)

	// The 2000 boundary passed before the 2500 bar: settle once.
	m.OnBar(2500, map[string]float64{"BTCUSDT": 100})
	assert.InDelta(t, 899.0, m.Cash, 1e-9)

	// Next boundary is 3000, reached by the 3500 bar.
	m.OnBar(3500, map[string]float64{"BTCUSDT": 100})
	assert.InDelta(t, 898.0, m.Cash, 1e-9)
}

func TestPerpManager_ShortReceivesFunding(t *testing.T) {
	specs := map[string]ContractSpec{
		"BTCUSDT": {Symbol: "BTCUSDT", Type: ContractLinear, Multiplier: 1, FundingInterval: 1000, MMR: 0.004},
	}
	m := NewPerpManager(newTestManager(Options{}), specs, StaticFunding{RateValue: 0.01})

	m.Queue().Push(queuedTradeEvent("BTCUSDT", 500, -1, domain.EventOpen))
	m.OnBar(500, map[string]float64{"BTCUSDT": 100})
	require.InDelta(t, 1100.0, m.Cash, 1e-9)

	m.OnBar(1000, map[string]float64{"BTCUSDT": 100})
	assert.InDelta(t, 1101.0, m.Cash, 1e-9)
}

func TestPerpManager_Liquidation(t *testing.T) {
	specs := map[string]ContractSpec{
		"BTCUSDT": {Symbol: "BTCUSDT", Type: ContractLinear, Multiplier: 1, MMR: 0.004},
	}
	m := NewPerpManager(newTestManager(Options{InitialCash: 100}), specs, nil)

	m.Queue().Push(queuedTradeEvent("BTCUSDT", 1000, 1, domain.EventOpen))
	m.OnBar(1000, map[string]float64{"BTCUSDT": 100})
	require.InDelta(t, 0.0, m.Cash, 1e-9)

	// Mark crashes: equity falls below maintenance margin, forced close.
	m.OnBar(2000, map[string]float64{"BTCUSDT": 50})

	assert.Equal(t, 0.0, m.Ledger().Position("BTCUSDT").Qty)
	assert.InDelta(t, 50.0, m.Cash, 1e-9)

	res := m.Results()
	require.Len(t, res.TradeLog, 1)
	assert.Equal(t, domain.ExitTypeLiquidate, res.TradeLog[0].ExitType)
	assert.Equal(t, domain.ResultLoss, res.TradeLog[0].Result)
	assert.InDelta(t, -50.0, res.TradeLog[0].PnL, 1e-9)
}

func TestPerpManager_HealthyPositionNotLiquidated(t *testing.T) {
	m := NewPerpManager(newTestManager(Options{}), nil, nil)

	m.Queue().Push(queuedTradeEvent("BTCUSDT", 1000, 1, domain.EventOpen))
	m.OnBar(1000, map[string]float64{"BTCUSDT": 100})

	m.OnBar(2000, map[string]float64{"BTCUSDT": 95})

	assert.Equal(t, 1.0, m.Ledger().Position("BTCUSDT").Qty)
	assert.Empty(t, m.Results().TradeLog)
}

func TestMaintenanceMargin(t *testing.T) {
	linear := ContractSpec{Type: ContractLinear, Multiplier: 1, MMR: 0.004}
	assert.InDelta(t, 0.4, MaintenanceMarginUSD(linear, 1, 100), 1e-9)
	assert.InDelta(t, 0.4, MaintenanceMarginUSD(linear, -1, 100), 1e-9)

	inverse := ContractSpec{Type: ContractInverse, Multiplier: 100, MMR: 0.01}
	assert.InDelta(t, 2.0, MaintenanceMarginUSD(inverse, 100, 50), 1e-9)
}
