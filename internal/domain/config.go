package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Config errors.
var (
	ErrNoSymbols       = errors.New("config: at least one symbol is required")
	ErrBadInitialCash  = errors.New("config: initial_cash must be positive")
	ErrBadIterations   = errors.New("config: num_iterations must be positive")
	ErrBadRatio        = errors.New("config: tp_ratio and sl_ratio must be positive")
	ErrMissingSeed     = errors.New("config: crossing_policy=random requires a non-zero seed")
	ErrUnknownCrossing = errors.New("config: unknown crossing_policy")
	ErrUnknownMarket   = errors.New("config: market must be SPOT or PERP")
)

// Crossing policy names. prefer_sl and prefer_tp are deterministic; random
// must be seeded by the caller to stay reproducible.
const (
	CrossingPreferSL = "prefer_sl"
	CrossingPreferTP = "prefer_tp"
	CrossingRandom   = "random"
)

// Market types.
const (
	MarketSpot = "SPOT"
	MarketPerp = "PERP"
)

// PolicySpec selects a built-in policy implementation by name plus a flat
// parameter map. Resolution happens once at run construction; unknown names
// are fatal there, never silently degraded.
type PolicySpec struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params,omitempty"`
}

// StrategySpec selects a strategy by name plus a flat parameter map.
type StrategySpec struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params,omitempty"`
}

// RunConfig is the flat, JSON-serializable run configuration consumed by
// the engine. It is the only input contract of the simulation core.
type RunConfig struct {
	Symbols       []string     `json:"symbols"`
	Interval      string       `json:"interval"`
	NumIterations int          `json:"num_iterations"`
	InitialCash   float64      `json:"initial_cash"`

	TPRatio   float64 `json:"tp_ratio"`
	SLRatio   float64 `json:"sl_ratio"`
	AddBuyPct float64 `json:"add_buy_pct"`

	// Builder-level execution frictions, applied once when events are built.
	FeePct             float64 `json:"fee_pct"`
	SlippagePct        float64 `json:"slippage_pct"`
	ExecutionDelayBars int     `json:"execution_delay_bars"`

	CrossingPolicy string `json:"crossing_policy"`
	CrossingSeed   int64  `json:"crossing_seed,omitempty"`

	Strategy StrategySpec `json:"strategy"`

	Fee      PolicySpec `json:"fee"`
	Slippage PolicySpec `json:"slippage"`
	Fill     PolicySpec `json:"fill"`
	Capacity PolicySpec `json:"capacity"`
	Sizing   PolicySpec `json:"sizing"`

	Market    string `json:"market"`
	Workers   int    `json:"workers"`
	ChunkSize int    `json:"chunk_size"`
}

// DefaultRunConfig returns a RunConfig with the documented defaults filled
// in. Symbols and strategy are left for the caller.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Interval:       "1h",
		NumIterations:  100,
		InitialCash:    100_000,
		TPRatio:        2.0,
		SLRatio:        1.0,
		AddBuyPct:      5.0,
		CrossingPolicy: CrossingPreferSL,
		Fee:            PolicySpec{Name: "static"},
		Slippage:       PolicySpec{Name: "zero"},
		Fill:           PolicySpec{Name: "aggressive"},
		Capacity:       PolicySpec{Name: "legs", Params: map[string]float64{"max_legs": 5}},
		Sizing:         PolicySpec{Name: "unit"},
		Market:         MarketSpot,
		Workers:        4,
		ChunkSize:      512,
	}
}

// Validate fails fast on malformed configuration, before any simulation
// work begins.
func (c *RunConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return ErrNoSymbols
	}
	if c.InitialCash <= 0 {
		return ErrBadInitialCash
	}
	if c.NumIterations <= 0 {
		return ErrBadIterations
	}
	if c.TPRatio <= 0 || c.SLRatio <= 0 {
		return ErrBadRatio
	}
	switch c.CrossingPolicy {
	case CrossingPreferSL, CrossingPreferTP:
	case CrossingRandom:
		if c.CrossingSeed == 0 {
			return ErrMissingSeed
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCrossing, c.CrossingPolicy)
	}
	switch c.Market {
	case MarketSpot, MarketPerp:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMarket, c.Market)
	}
	return nil
}

// DecodeRunConfig reads a RunConfig as JSON, layered over the defaults.
func DecodeRunConfig(r io.Reader) (RunConfig, error) {
	cfg := DefaultRunConfig()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode run config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
