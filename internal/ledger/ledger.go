// Package ledger implements the deterministic cash & position ledger with a
// pluggable execution model.
//
// Workflow:
//  1. The portfolio manager passes a time-sorted batch of TradeEvents.
//  2. The injected FillPolicy converts each TradeEvent into 1..N FillRecords,
//     applying its own fee/slippage models.
//  3. Each fill books cash, updates the Position and is stored for analytics.
package ledger

import (
	"errors"

	"backtest-lab/internal/domain"
)

// Ingest errors.
var ErrMissingSymbol = errors.New("trade event meta is missing symbol")

// TransactionLedger applies a fill policy plus cost models to ingest trade
// events, maintaining per-symbol positions and realised cash deltas.
// One ledger belongs to one backtest run; it is not safe for concurrent use.
type TransactionLedger struct {
	positions map[string]*Position

	// [(ts, delta)]: negative = cash out, positive = in.
	cashLog []cashEntry

	fills []FillRecord

	fillPolicy FillPolicy
	book       *OrderBook // optional depth snapshot, nil = infinite liquidity
}

type cashEntry struct {
	ts    int64
	delta float64
}

// NewTransactionLedger creates a ledger. A nil fillPolicy defaults to the
// aggressive policy with a static fee and zero slippage.
func NewTransactionLedger(fee, slip CostModel, fillPolicy FillPolicy) *TransactionLedger {
	if fee == nil {
		fee = StaticFee(0.001)
	}
	if slip == nil {
		slip = ZeroSlippage()
	}
	if fillPolicy == nil {
		fillPolicy = NewAggressivePolicy(fee, slip)
	}
	return &TransactionLedger{
		positions:  make(map[string]*Position),
		fillPolicy: fillPolicy,
	}
}

// SetBook installs the depth snapshot consulted by depth-walking policies.
func (l *TransactionLedger) SetBook(book *OrderBook) { l.book = book }

// Ingest books a batch of TradeEvents. The caller guarantees they are
// sorted by timestamp.
func (l *TransactionLedger) Ingest(events []*domain.TradeEvent) error {
	for _, ev := range events {
		if _, ok := ev.Meta[domain.MetaSymbol]; !ok {
			return ErrMissingSymbol
		}
		for _, fill := range l.fillPolicy.Fill(ev, l.book) {
			l.applyFill(fill)
		}
	}
	return nil
}

// CurrentCashDelta returns realised cash since the last pop without
// clearing it.
func (l *TransactionLedger) CurrentCashDelta() float64 {
	var total float64
	for _, e := range l.cashLog {
		total += e.delta
	}
	return total
}

// PopCashDelta returns realised cash since the last call and clears the
// log. Called once per bar by the portfolio manager; not idempotent.
func (l *TransactionLedger) PopCashDelta() float64 {
	total := l.CurrentCashDelta()
	l.cashLog = l.cashLog[:0]
	return total
}

// UnrealisedPnL marks open positions to market. Symbols absent from marks
// fall back to their average price (zero contribution).
func (l *TransactionLedger) UnrealisedPnL(marks map[string]float64) float64 {
	var pnl float64
	for sym, pos := range l.positions {
		if pos.Qty == 0 {
			continue
		}
		mark, ok := marks[sym]
		if !ok {
			mark = pos.AvgPrice
		}
		pnl += pos.Qty * (mark - pos.AvgPrice)
	}
	return pnl
}

// Fills returns a copy of the execution history for analytics.
func (l *TransactionLedger) Fills() []FillRecord {
	out := make([]FillRecord, len(l.fills))
	copy(out, l.fills)
	return out
}

// FillCount returns the number of booked fills without copying.
func (l *TransactionLedger) FillCount() int { return len(l.fills) }

// FillsFrom returns a copy of the fills booked at index from onward.
// Paired with FillCount it isolates the fills of a single ingested event.
func (l *TransactionLedger) FillsFrom(from int) []FillRecord {
	if from < 0 || from >= len(l.fills) {
		return nil
	}
	out := make([]FillRecord, len(l.fills)-from)
	copy(out, l.fills[from:])
	return out
}

// LastFill returns the most recent fill, or nil when none exist.
func (l *TransactionLedger) LastFill() *FillRecord {
	if len(l.fills) == 0 {
		return nil
	}
	f := l.fills[len(l.fills)-1]
	return &f
}

// Position returns the position for a symbol, creating it lazily. Zero
// quantity is the terminal state; positions are never deleted.
func (l *TransactionLedger) Position(symbol string) *Position {
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &Position{}
		l.positions[symbol] = pos
	}
	return pos
}

// OpenSymbols returns the set of symbols with non-zero quantity.
func (l *TransactionLedger) OpenSymbols() map[string]struct{} {
	open := make(map[string]struct{})
	for sym, pos := range l.positions {
		if pos.Qty != 0 {
			open[sym] = struct{}{}
		}
	}
	return open
}

// OpenLegs counts positions with non-zero quantity.
func (l *TransactionLedger) OpenLegs() int {
	var n int
	for _, pos := range l.positions {
		if pos.Qty != 0 {
			n++
		}
	}
	return n
}

// applyFill books a single FillRecord: cash ledger, position, analytics.
func (l *TransactionLedger) applyFill(fill FillRecord) {
	var cashDelta float64
	if fill.Qty == 0 && fill.Kind == domain.EventFunding {
		// Funding moves only its signed cash delta, carried in the event meta.
		if v, ok := fill.Meta[domain.MetaFundingCash].(float64); ok {
			cashDelta = v
		}
	} else {
		cashDelta = -fill.ExecPrice*fill.Qty - fill.FeeCash
	}
	l.cashLog = append(l.cashLog, cashEntry{ts: fill.TS, delta: cashDelta})

	// Position.Apply consumes events, so wrap the fill as one.
	l.Position(fill.Symbol).Apply(&domain.TradeEvent{
		TS:    fill.TS,
		Price: fill.ExecPrice,
		Qty:   fill.Qty,
		Kind:  fill.Kind,
		Meta:  fill.Meta,
	})

	l.fills = append(l.fills, fill)
}
