package portfolio

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/proposal"
)

// Capacity errors.
var ErrUnknownCapacityPolicy = errors.New("unknown capacity policy")

// CapacityPolicy is the sole admission gate, consulted before any event is
// queued. Admission is all-or-nothing: a proposal is never partially
// admitted.
type CapacityPolicy interface {
	Admit(p *proposal.TradeProposal, nowTS int64, pending *EventQueue, openSymbols map[string]struct{}) bool
}

// LegCapacity caps total entry legs: open positions, already queued legs
// and those the proposal would open now. A leg stops counting once its
// exit has settled.
type LegCapacity struct {
	MaxLegs int
}

// Admit implements CapacityPolicy.
func (c LegCapacity) Admit(p *proposal.TradeProposal, nowTS int64, pending *EventQueue, openSymbols map[string]struct{}) bool {
	return len(openSymbols)+pending.EntryLegs()+p.EntryLegs(nowTS) <= c.MaxLegs
}

// SymbolCapacity caps distinct symbols with any exposure: open, queued or
// newly proposed.
type SymbolCapacity struct {
	MaxSymbols int
}

// Admit implements CapacityPolicy.
func (c SymbolCapacity) Admit(p *proposal.TradeProposal, nowTS int64, pending *EventQueue, openSymbols map[string]struct{}) bool {
	future := make(map[string]struct{}, len(openSymbols))
	for sym := range openSymbols {
		future[sym] = struct{}{}
	}
	for sym := range pending.EntrySymbols() {
		future[sym] = struct{}{}
	}
	for _, e := range p.BuildEvents() {
		if e.IsEntry() && e.TS >= nowTS {
			future[e.Symbol()] = struct{}{}
		}
	}
	return len(future) <= c.MaxSymbols
}

// Unlimited admits everything. Useful for single-proposal unit runs.
type Unlimited struct{}

// Admit implements CapacityPolicy.
func (Unlimited) Admit(*proposal.TradeProposal, int64, *EventQueue, map[string]struct{}) bool {
	return true
}

// CapacityFromSpec resolves a capacity policy by spec name. Resolution
// happens once at run construction; unknown names are fatal.
func CapacityFromSpec(spec domain.PolicySpec) (CapacityPolicy, error) {
	switch spec.Name {
	case "", "legs":
		max := 5
		if v, ok := spec.Params["max_legs"]; ok {
			max = int(v)
		}
		return LegCapacity{MaxLegs: max}, nil
	case "symbols":
		max := 5
		if v, ok := spec.Params["max_symbols"]; ok {
			max = int(v)
		}
		return SymbolCapacity{MaxSymbols: max}, nil
	case "unlimited":
		return Unlimited{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapacityPolicy, spec.Name)
	}
}
