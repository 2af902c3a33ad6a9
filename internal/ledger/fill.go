package ledger

import (
	"errors"
	"fmt"

	"backtest-lab/internal/domain"
)

// Fill policy errors.
var ErrUnknownFillPolicy = errors.New("unknown fill policy")

// Side labels on fill records.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// FillRecord is an immutable execution fact. The quantities of all records
// produced for one TradeEvent sum to that event's quantity exactly.
type FillRecord struct {
	TS        int64
	Symbol    string
	Side      string
	Qty       float64 // signed (+ buy, - sell)
	RawPrice  float64 // price carried by the TradeEvent
	ExecPrice float64 // after slippage
	FeeCash   float64 // commission in quote currency
	Kind      domain.EventKind
	Meta      map[string]any
}

// BookLevel is one price/size step of an order-book side.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook is the depth snapshot a depth-walking policy consumes. Levels
// must be ordered best-first on the relevant side.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// Levels returns the side a signed quantity trades against.
func (b *OrderBook) Levels(qty float64) []BookLevel {
	if qty > 0 {
		return b.Asks
	}
	return b.Bids
}

// FillPolicy converts one TradeEvent into one or more FillRecords against
// available liquidity. book may be nil.
type FillPolicy interface {
	Fill(e *domain.TradeEvent, book *OrderBook) []FillRecord
}

// AggressivePolicy fills the whole event 1:1 at the slippage-adjusted event
// price, modeling infinite liquidity.
type AggressivePolicy struct {
	fee  CostModel
	slip CostModel
}

// NewAggressivePolicy creates the default fill policy.
func NewAggressivePolicy(fee, slip CostModel) *AggressivePolicy {
	return &AggressivePolicy{fee: fee, slip: slip}
}

// Fill implements FillPolicy.
func (p *AggressivePolicy) Fill(e *domain.TradeEvent, _ *OrderBook) []FillRecord {
	sign := 1.0
	if e.Qty < 0 {
		sign = -1.0
	}
	execPx := e.Price * (1 + sign*p.slip(e))
	feeCash := abs(execPx*e.Qty) * p.fee(e)

	return []FillRecord{{
		TS:        e.TS,
		Symbol:    e.Symbol(),
		Side:      sideOf(e.Qty),
		Qty:       e.Qty,
		RawPrice:  e.Price,
		ExecPrice: execPx,
		FeeCash:   feeCash,
		Kind:      e.Kind,
		Meta:      e.Meta,
	}}
}

// DepthPolicy walks up to Depth order-book levels, emitting one FillRecord
// per level actually consumed. Any unfilled remainder is filled at the
// worst available level's price and flagged overflow. With no book it
// degrades to aggressive behavior.
type DepthPolicy struct {
	Depth int
	fee   CostModel
	slip  CostModel
}

// NewDepthPolicy creates a depth-walking fill policy.
func NewDepthPolicy(depth int, fee, slip CostModel) *DepthPolicy {
	return &DepthPolicy{Depth: depth, fee: fee, slip: slip}
}

// Fill implements FillPolicy. The sum of emitted quantities equals e.Qty
// exactly.
func (p *DepthPolicy) Fill(e *domain.TradeEvent, book *OrderBook) []FillRecord {
	var fills []FillRecord
	remaining := abs(e.Qty)
	sign := 1.0
	if e.Qty < 0 {
		sign = -1.0
	}
	side := sideOf(e.Qty)

	var levels []BookLevel
	if book != nil {
		levels = book.Levels(e.Qty)
		if p.Depth > 0 && len(levels) > p.Depth {
			levels = levels[:p.Depth]
		}
	}

	for _, lvl := range levels {
		take := remaining
		if lvl.Size < take {
			take = lvl.Size
		}
		if take == 0 {
			break
		}

		execPx := lvl.Price * (1 + sign*p.slip(e))
		fills = append(fills, FillRecord{
			TS:        e.TS,
			Symbol:    e.Symbol(),
			Side:      side,
			Qty:       sign * take,
			RawPrice:  lvl.Price,
			ExecPrice: execPx,
			FeeCash:   abs(execPx*take) * p.fee(e),
			Kind:      e.Kind,
			Meta:      withMeta(e.Meta, domain.MetaBookPrice, lvl.Price),
		})

		remaining -= take
		if remaining <= 0 {
			break
		}
	}

	// Left-over size fills aggressively at the worst price seen.
	if remaining > 0 {
		worstPx := e.Price
		if len(levels) > 0 {
			worstPx = levels[len(levels)-1].Price
		}
		execPx := worstPx * (1 + sign*p.slip(e))
		meta := withMeta(e.Meta, domain.MetaBookPrice, worstPx)
		meta[domain.MetaOverflow] = true
		fills = append(fills, FillRecord{
			TS:        e.TS,
			Symbol:    e.Symbol(),
			Side:      side,
			Qty:       sign * remaining,
			RawPrice:  worstPx,
			ExecPrice: execPx,
			FeeCash:   abs(execPx*remaining) * p.fee(e),
			Kind:      e.Kind,
			Meta:      meta,
		})
	}

	return fills
}

// FillPolicyFromSpec resolves a fill policy by spec name. Called once at
// run construction; unknown names are fatal.
func FillPolicyFromSpec(spec domain.PolicySpec, fee, slip CostModel) (FillPolicy, error) {
	switch spec.Name {
	case "", "aggressive":
		return NewAggressivePolicy(fee, slip), nil
	case "depth":
		depth := 5
		if v, ok := spec.Params["depth"]; ok {
			depth = int(v)
		}
		return NewDepthPolicy(depth, fee, slip), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFillPolicy, spec.Name)
	}
}

func sideOf(qty float64) string {
	if qty > 0 {
		return SideBuy
	}
	return SideSell
}

func withMeta(meta map[string]any, key string, val any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = val
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
