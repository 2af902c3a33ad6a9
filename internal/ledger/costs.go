package ledger

import (
	"errors"
	"fmt"
	"math/rand"

	"backtest-lab/internal/domain"
)

// Cost model errors.
var (
	ErrUnknownFeeModel      = errors.New("unknown fee model")
	ErrUnknownSlippageModel = errors.New("unknown slippage model")
	ErrMissingSeed          = errors.New("random slippage model requires a non-zero seed")
)

// CostModel returns a cost percentage (0.001 = 0.1%) for one event.
// Implementations must be pure with respect to ledger state.
type CostModel func(e *domain.TradeEvent) float64

// StaticFee returns a fee model that always charges the same percentage.
func StaticFee(pct float64) CostModel {
	return func(*domain.TradeEvent) float64 { return pct }
}

// PerSymbolFee charges a per-symbol percentage with a fallback default.
func PerSymbolFee(fees map[string]float64, def float64) CostModel {
	return func(e *domain.TradeEvent) float64 {
		if pct, ok := fees[e.Symbol()]; ok {
			return pct
		}
		return def
	}
}

// ZeroSlippage is the no-friction slippage model.
func ZeroSlippage() CostModel {
	return func(*domain.TradeEvent) float64 { return 0 }
}

// FixedSlippage returns a constant slippage percentage.
func FixedSlippage(pct float64) CostModel {
	return func(*domain.TradeEvent) float64 { return pct }
}

// SeededSlippage draws uniform slippage in [0, maxPct) from a private
// seeded source, so runs stay reproducible. The source recalls its own
// state; callers must not share one model across concurrent runs.
func SeededSlippage(maxPct float64, seed int64) CostModel {
	rng := rand.New(rand.NewSource(seed))
	return func(*domain.TradeEvent) float64 { return rng.Float64() * maxPct }
}

// Default per-symbol fee schedule, matching the common exchange tiers.
var defaultSymbolFees = map[string]float64{
	"BTCUSDT": 0.0005,
	"ETHUSDT": 0.001,
	"XRPUSDT": 0.0015,
}

// FeeFromSpec resolves a fee model by spec name. Called once at run
// construction; unknown names are fatal.
func FeeFromSpec(spec domain.PolicySpec) (CostModel, error) {
	switch spec.Name {
	case "", "static":
		pct := 0.001
		if v, ok := spec.Params["pct"]; ok {
			pct = v
		}
		return StaticFee(pct), nil
	case "per_symbol":
		def := 0.001
		if v, ok := spec.Params["default"]; ok {
			def = v
		}
		return PerSymbolFee(defaultSymbolFees, def), nil
	case "zero":
		return StaticFee(0), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeeModel, spec.Name)
	}
}

// SlippageFromSpec resolves a slippage model by spec name.
func SlippageFromSpec(spec domain.PolicySpec, seed int64) (CostModel, error) {
	switch spec.Name {
	case "", "zero":
		return ZeroSlippage(), nil
	case "fixed":
		pct := 0.0005
		if v, ok := spec.Params["pct"]; ok {
			pct = v
		}
		return FixedSlippage(pct), nil
	case "random":
		if seed == 0 {
			return nil, ErrMissingSeed
		}
		maxPct := 0.001
		if v, ok := spec.Params["max_pct"]; ok {
			maxPct = v
		}
		return SeededSlippage(maxPct, seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlippageModel, spec.Name)
	}
}
