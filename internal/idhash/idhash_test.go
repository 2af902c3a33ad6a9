package idhash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"backtest-lab/internal/domain"
)

func TestRunID_Deterministic(t *testing.T) {
	cfg := domain.DefaultRunConfig()
	cfg.Symbols = []string{"BTCUSDT"}

	a := RunID(cfg)
	b := RunID(cfg)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.Len(t, a, len("run_")+16)
}

func TestRunID_DistinctConfigsDiffer(t *testing.T) {
	cfg := domain.DefaultRunConfig()
	cfg.Symbols = []string{"BTCUSDT"}

	other := cfg
	other.Symbols = []string{"ETHUSDT"}
	assert.NotEqual(t, RunID(cfg), RunID(other))

	other = cfg
	other.CrossingSeed = 7
	assert.NotEqual(t, RunID(cfg), RunID(other))
}

func TestTradeID(t *testing.T) {
	trade := domain.NewTradeLogEntry("BTCUSDT", 1000, 100, 2000, 110, 1, 1, domain.DirectionLong, domain.ExitTypeTP)

	a := TradeID("run_abc", trade)
	assert.Equal(t, a, TradeID("run_abc", trade))
	assert.True(t, strings.HasPrefix(a, "trd_"))

	assert.NotEqual(t, a, TradeID("run_def", trade))

	later := trade
	later.ExitTime = 3000
	assert.NotEqual(t, a, TradeID("run_abc", later))
}
