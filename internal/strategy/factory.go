package strategy

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
)

// Factory errors.
var ErrUnknownStrategy = errors.New("unknown strategy")

// FromSpec creates a Strategy from a StrategySpec. Unknown names are fatal
// at construction, before any simulation work begins.
func FromSpec(spec domain.StrategySpec) (Strategy, error) {
	switch spec.Name {
	case "peak_ema_reversal":
		period := 21
		if v, ok := spec.Params["period"]; ok {
			period = int(v)
		}
		return NewPeakEMAReversal(period), nil
	case "momentum":
		period := 10
		if v, ok := spec.Params["period"]; ok {
			period = int(v)
		}
		return NewMomentum(period), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, spec.Name)
	}
}
