package portfolio

import (
	"sort"

	"backtest-lab/internal/domain"
)

// PerpManager decorates a Manager with perpetual-futures mechanics: on each
// bar it synthesizes FUNDING events at the contract's funding interval and
// LIQUIDATE events when equity falls below maintenance margin. The base
// ledger stays unaware; everything flows through the same event-sourcing
// path.
type PerpManager struct {
	*Manager

	specs   map[string]ContractSpec
	funding FundingProvider

	// Next settlement timestamp per open symbol. Settling on "due time
	// reached" instead of exact grid hits keeps funding robust to bar
	// open times that are not aligned to the funding epoch.
	nextFunding map[string]int64
}

// NewPerpManager wraps a base manager. Nil specs/funding get defaults
// (PerpSpecs, zero funding).
func NewPerpManager(base *Manager, specs map[string]ContractSpec, funding FundingProvider) *PerpManager {
	if specs == nil {
		specs = PerpSpecs
	}
	if funding == nil {
		funding = StaticFunding{}
	}
	return &PerpManager{
		Manager:     base,
		specs:       specs,
		funding:     funding,
		nextFunding: make(map[string]int64),
	}
}

// OnBar settles funding and checks liquidation before the base flush.
func (m *PerpManager) OnBar(ts int64, marks map[string]float64) {
	m.applyFunding(ts)
	m.checkLiquidation(ts, marks)
	m.Manager.OnBar(ts, marks)
}

// applyFunding synthesizes one FUNDING event per open position whose next
// settlement time has been reached. Funding cash is signed: longs pay a
// positive rate, shorts receive it.
func (m *PerpManager) applyFunding(ts int64) {
	open := m.openSymbolsSorted()

	// Closed positions restart their schedule on the next open.
	seen := make(map[string]struct{}, len(open))
	for _, sym := range open {
		seen[sym] = struct{}{}
	}
	for sym := range m.nextFunding {
		if _, ok := seen[sym]; !ok {
			delete(m.nextFunding, sym)
		}
	}

	for _, sym := range open {
		pos := m.Ledger().Position(sym)
		spec, ok := m.specs[sym]
		if !ok || spec.FundingInterval == 0 {
			continue
		}

		next, scheduled := m.nextFunding[sym]
		if !scheduled {
			// First bar with this position open: due on the next grid
			// boundary, or immediately when the bar sits on one.
			next = (ts/spec.FundingInterval + 1) * spec.FundingInterval
			if ts%spec.FundingInterval == 0 {
				next = ts
			}
			m.nextFunding[sym] = next
		}
		if ts < next {
			continue
		}
		m.nextFunding[sym] = (ts/spec.FundingInterval + 1) * spec.FundingInterval

		rate := m.funding.Rate(sym, ts)
		cash := -pos.Qty * pos.AvgPrice * rate
		m.ingest(&domain.TradeEvent{
			TS:    ts,
			Price: pos.AvgPrice,
			Qty:   0,
			Kind:  domain.EventFunding,
			Meta: map[string]any{
				domain.MetaSymbol:      sym,
				domain.MetaFundingCash: cash,
			},
		})
	}
}

// checkLiquidation force-closes any position once portfolio equity drops
// below its maintenance margin requirement.
func (m *PerpManager) checkLiquidation(ts int64, marks map[string]float64) {
	equity := m.Cash + m.Ledger().CurrentCashDelta() + m.Ledger().UnrealisedPnL(marks)
	for _, sym := range m.openSymbolsSorted() {
		pos := m.Ledger().Position(sym)
		spec, ok := m.specs[sym]
		if !ok {
			continue
		}
		mark, ok := marks[sym]
		if !ok {
			mark = pos.AvgPrice
		}
		if equity < MaintenanceMarginUSD(spec, pos.Qty, mark) {
			m.ingest(&domain.TradeEvent{
				TS:    ts,
				Price: mark,
				Qty:   -pos.Qty,
				Kind:  domain.EventLiquidate,
				Meta: map[string]any{
					domain.MetaSymbol:     sym,
					domain.MetaExit:       domain.ExitTypeLiquidate,
					domain.MetaAvgEntryPx: pos.AvgPrice,
				},
			})
		}
	}
}

// openSymbolsSorted returns open symbols in a fixed order so synthesized
// events replay identically.
func (m *PerpManager) openSymbolsSorted() []string {
	open := m.Ledger().OpenSymbols()
	syms := make([]string, 0, len(open))
	for sym := range open {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}
