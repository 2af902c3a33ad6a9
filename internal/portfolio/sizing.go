package portfolio

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
)

// Sizing errors.
var ErrUnknownSizingModel = errors.New("unknown sizing model")

// Sizing phases.
const (
	PhaseEntry = "entry"
	PhaseDCA   = "dca"
	PhaseExit  = "exit"
)

// SizingModel returns a multiplicative scale for entry quantities
// (1.0 = no change). Applied at admission time, after capacity checks,
// before enqueue.
type SizingModel func(meta domain.TradeMeta, phase string) float64

// UnitSizing leaves quantities untouched.
func UnitSizing() SizingModel {
	return func(domain.TradeMeta, string) float64 { return 1.0 }
}

// FixedFraction scales every entry by a constant fraction.
func FixedFraction(frac float64) SizingModel {
	return func(domain.TradeMeta, string) float64 { return frac }
}

// SizingFromSpec resolves a sizing model by spec name.
func SizingFromSpec(spec domain.PolicySpec) (SizingModel, error) {
	switch spec.Name {
	case "", "unit":
		return UnitSizing(), nil
	case "fixed_fraction":
		frac := 1.0
		if v, ok := spec.Params["fraction"]; ok {
			frac = v
		}
		return FixedFraction(frac), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSizingModel, spec.Name)
	}
}
