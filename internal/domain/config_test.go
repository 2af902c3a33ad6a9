package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Symbols = []string{"BTCUSDT"}
	return cfg
}

func TestRunConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   error
	}{
		{"no symbols", func(c *RunConfig) { c.Symbols = nil }, ErrNoSymbols},
		{"zero cash", func(c *RunConfig) { c.InitialCash = 0 }, ErrBadInitialCash},
		{"negative iterations", func(c *RunConfig) { c.NumIterations = -1 }, ErrBadIterations},
		{"zero tp ratio", func(c *RunConfig) { c.TPRatio = 0 }, ErrBadRatio},
		{"zero sl ratio", func(c *RunConfig) { c.SLRatio = 0 }, ErrBadRatio},
		{"unknown crossing", func(c *RunConfig) { c.CrossingPolicy = "coin_flip" }, ErrUnknownCrossing},
		{"random without seed", func(c *RunConfig) { c.CrossingPolicy = CrossingRandom }, ErrMissingSeed},
		{"unknown market", func(c *RunConfig) { c.Market = "FUTURES" }, ErrUnknownMarket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestRunConfig_RandomCrossingWithSeed(t *testing.T) {
	cfg := validConfig()
	cfg.CrossingPolicy = CrossingRandom
	cfg.CrossingSeed = 42
	assert.NoError(t, cfg.Validate())
}

func TestDecodeRunConfig(t *testing.T) {
	in := `{"symbols":["BTCUSDT","ETHUSDT"],"interval":"4h","num_iterations":200,"market":"PERP"}`

	cfg, err := DecodeRunConfig(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, "4h", cfg.Interval)
	assert.Equal(t, 200, cfg.NumIterations)
	assert.Equal(t, MarketPerp, cfg.Market)

	// Unset fields keep the documented defaults.
	assert.Equal(t, 100_000.0, cfg.InitialCash)
	assert.Equal(t, CrossingPreferSL, cfg.CrossingPolicy)
	assert.Equal(t, "aggressive", cfg.Fill.Name)
}

func TestDecodeRunConfig_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeRunConfig(strings.NewReader(`{"symbols":["BTCUSDT"],"bogus":1}`))
	assert.Error(t, err)
}

func TestDecodeRunConfig_ValidatesResult(t *testing.T) {
	_, err := DecodeRunConfig(strings.NewReader(`{"interval":"1h"}`))
	assert.ErrorIs(t, err, ErrNoSymbols)
}
