// Package portfolio implements the event-driven portfolio manager:
// proposals are admitted through capacity/cash/risk gates, their events
// queued on a (timestamp, sequence) min-heap, and each bar flushes due
// events into the transaction ledger while maintaining cash, the equity
// curve and the trade log.
package portfolio

import (
	"io"
	"log"
	"sort"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/ledger"
	"backtest-lab/internal/proposal"
)

// RiskCheck vetoes a proposal on portfolio-level risk (VAR, leverage,
// blacklists). The default always allows.
type RiskCheck func(meta domain.TradeMeta) bool

// Manager is the stateful simulation core. One Manager belongs to exactly
// one backtest run and must not be shared across concurrent runs; all
// mutation happens through TryExecute and OnBar.
type Manager struct {
	Cash float64

	ledger   *ledger.TransactionLedger
	capacity CapacityPolicy
	sizing   SizingModel
	riskOK   RiskCheck

	queue       *EventQueue
	tradeLog    []domain.TradeLogEntry
	equityCurve []domain.EquityPoint

	errorCount int
	logger     *log.Logger
}

// Options configures a Manager. Zero-value fields get sensible defaults:
// LegCapacity(5), unit sizing, allow-all risk check, aggressive fills with
// a static fee and zero slippage.
type Options struct {
	InitialCash float64
	Capacity    CapacityPolicy
	Sizing      SizingModel
	Risk        RiskCheck
	Fee         ledger.CostModel
	Slippage    ledger.CostModel
	Fill        ledger.FillPolicy
	Logger      *log.Logger
}

// NewManager creates a portfolio manager.
func NewManager(opts Options) *Manager {
	if opts.InitialCash == 0 {
		opts.InitialCash = 100_000
	}
	if opts.Capacity == nil {
		opts.Capacity = LegCapacity{MaxLegs: 5}
	}
	if opts.Sizing == nil {
		opts.Sizing = UnitSizing()
	}
	if opts.Risk == nil {
		opts.Risk = func(domain.TradeMeta) bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		Cash:     opts.InitialCash,
		ledger:   ledger.NewTransactionLedger(opts.Fee, opts.Slippage, opts.Fill),
		capacity: opts.Capacity,
		sizing:   opts.Sizing,
		riskOK:   opts.Risk,
		queue:    NewEventQueue(),
		logger:   opts.Logger,
	}
}

// Ledger exposes the transaction ledger for decorators and analytics.
func (m *Manager) Ledger() *ledger.TransactionLedger { return m.ledger }

// Queue exposes the pending event heap (read paths only).
func (m *Manager) Queue() *EventQueue { return m.queue }

// ErrorCount returns the number of per-event ingest failures survived.
func (m *Manager) ErrorCount() int { return m.errorCount }

// canOpen is the single admission decision point: risk, cash sufficiency
// for the first entry leg, then capacity against the current queue and
// open-symbol set.
func (m *Manager) canOpen(p *proposal.TradeProposal, nowTS int64, firstEntry *domain.TradeEvent) bool {
	if !m.riskOK(p.Meta) {
		return false
	}
	required := firstEntry.Price * absf(firstEntry.Qty)
	if m.Cash < required {
		return false
	}
	return m.capacity.Admit(p, nowTS, m.queue, m.ledger.OpenSymbols())
}

// TryExecute validates and enqueues a proposal. On success every entry leg
// is scaled by the sizing model and all events land on the heap; on any
// failure it returns false with zero side effects.
func (m *Manager) TryExecute(p *proposal.TradeProposal, nowTS int64) bool {
	if nowTS == 0 {
		nowTS = p.Meta.EntryTime
	}
	events := p.BuildEvents()
	if len(events) == 0 {
		return false
	}

	firstEntry := p.FirstEntry()
	if firstEntry == nil {
		return false
	}

	if !m.canOpen(p, nowTS, firstEntry) {
		return false
	}

	scale := m.sizing(p.Meta, PhaseEntry)
	if scale == 0 {
		scale = 1.0
	}

	for _, ev := range events {
		if scale != 1.0 && ev.IsEntry() {
			ev = ev.CloneWithQty(ev.Qty * scale)
		}
		m.queue.Push(ev)
	}
	return true
}

// OnBar processes every pending event with timestamp <= ts in heap order,
// drains realised cash, marks to market and appends one equity point.
// This is the only place the bar clock advances state.
func (m *Manager) OnBar(ts int64, marks map[string]float64) {
	for {
		ev := m.queue.PopDue(ts)
		if ev == nil {
			break
		}
		m.ingest(ev)
	}

	m.Cash += m.ledger.PopCashDelta()

	equity := m.Cash + m.ledger.UnrealisedPnL(marks)
	m.equityCurve = append(m.equityCurve, domain.EquityPoint{Time: ts, Equity: equity})
}

// ingest books one event; failures are logged, counted and skipped so a
// single malformed event never aborts the run.
func (m *Manager) ingest(ev *domain.TradeEvent) {
	from := m.ledger.FillCount()
	if err := m.ledger.Ingest([]*domain.TradeEvent{ev}); err != nil {
		m.errorCount++
		m.logger.Printf("skip event %s@%d: %v", ev.Kind, ev.TS, err)
		return
	}

	if ev.IsExit() {
		// A depth-walking policy may split the exit across levels; log the
		// quantity-weighted price, not the last (worst) fill.
		if px, ok := weightedExecPrice(m.ledger.FillsFrom(from)); ok {
			m.logExit(ev, px)
		}
	}
}

// weightedExecPrice averages fill prices by absolute quantity. ok is false
// when the fills carry no size.
func weightedExecPrice(fills []ledger.FillRecord) (float64, bool) {
	var qty, notional float64
	for _, f := range fills {
		qty += absf(f.Qty)
		notional += f.ExecPrice * absf(f.Qty)
	}
	if qty == 0 {
		return 0, false
	}
	return notional / qty, true
}

// logExit appends a trade log entry for an ingested exit-class event,
// using the actual execution price from the corresponding fill.
func (m *Manager) logExit(ev *domain.TradeEvent, execPx float64) {
	entryTime := metaInt64(ev.Meta, domain.MetaOrigEntryTS, ev.TS)
	entryPx := metaFloat(ev.Meta, domain.MetaAvgEntryPx, 0)
	if entryPx == 0 {
		entryPx = metaFloat(ev.Meta, domain.MetaOrigEntryPx, ev.Price)
	}
	legs := int(metaFloat(ev.Meta, domain.MetaEntryLegs, 1))
	if v, ok := ev.Meta[domain.MetaEntryLegs].(int); ok {
		legs = v
	}

	direction := domain.DirectionLong
	if s, ok := ev.Meta[domain.MetaDirection].(string); ok && s == string(domain.DirectionShort) {
		direction = domain.DirectionShort
	}

	exitType := string(ev.Kind)
	if s, ok := ev.Meta[domain.MetaExit].(string); ok {
		exitType = s
	} else if ev.Kind == domain.EventLiquidate {
		exitType = domain.ExitTypeLiquidate
	}

	m.tradeLog = append(m.tradeLog, domain.NewTradeLogEntry(
		ev.Symbol(), entryTime, entryPx, ev.TS, execPx,
		absf(ev.Qty), legs, direction, exitType,
	))
}

// FinalFlush force-closes every open position at its mark price and runs
// one terminal bar so the realised cash lands in the last equity point.
// Exits logged this way carry the FINAL exit type.
func (m *Manager) FinalFlush(ts int64, marks map[string]float64) {
	open := m.ledger.OpenSymbols()
	syms := make([]string, 0, len(open))
	for sym := range open {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	for _, sym := range syms {
		pos := m.ledger.Position(sym)
		mark, ok := marks[sym]
		if !ok {
			mark = pos.AvgPrice
		}
		m.queue.Push(&domain.TradeEvent{
			TS:    ts,
			Price: mark,
			Qty:   -pos.Qty,
			Kind:  domain.EventClose,
			Meta: map[string]any{
				domain.MetaSymbol:     sym,
				domain.MetaExit:       domain.ExitTypeFinal,
				domain.MetaAvgEntryPx: pos.AvgPrice,
			},
		})
	}
	m.OnBar(ts, marks)
}

// Results extracts the run outputs. Call once at run end.
func (m *Manager) Results() domain.Result {
	return domain.Result{
		TradeLog:    m.tradeLog,
		FinalCash:   m.Cash,
		EquityCurve: m.equityCurve,
	}
}

func metaInt64(meta map[string]any, key string, def int64) int64 {
	switch v := meta[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return def
}

func metaFloat(meta map[string]any, key string, def float64) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
