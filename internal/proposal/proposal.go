// Package proposal converts a strategy decision plus a forward candle
// window into a deterministic, time-ordered list of trade events.
package proposal

import (
	"hash/fnv"
	"math/rand"

	"backtest-lab/internal/domain"
)

// BuildOptions fix the execution frictions and policies a proposal is
// built with. They are bound at construction so BuildEvents is nullary
// and idempotent.
type BuildOptions struct {
	AddBuyPct          float64 // DCA trigger distance, % of real entry price; 0 disables
	FeePct             float64 // fee fraction folded into builder prices
	SlippagePct        float64 // slippage fraction folded into builder prices
	ExecutionDelayBars int     // skip N candles before the first fill
	CrossingPolicy     string  // prefer_sl | prefer_tp | random
	CrossingSeed       int64   // required for random; mixed with the meta for per-proposal streams
}

// TradeProposal owns a TradeMeta and the forward candle window needed to
// simulate it. BuildEvents is pure and memoized: repeated calls return the
// identical event sequence.
type TradeProposal struct {
	Meta   domain.TradeMeta
	Window []domain.Candle

	opts   BuildOptions
	events []*domain.TradeEvent
	built  bool
}

// New creates a proposal. The window is the high-resolution candle slice
// used to evaluate DCA and exit conditions.
func New(meta domain.TradeMeta, window []domain.Candle, opts BuildOptions) *TradeProposal {
	if opts.CrossingPolicy == "" {
		opts.CrossingPolicy = domain.CrossingPreferSL
	}
	return &TradeProposal{Meta: meta, Window: window, opts: opts}
}

// BuildEvents returns the ordered trade event sequence for this proposal.
// An empty or too-short window yields no events; such a proposal is invalid
// and must be rejected before touching the ledger.
//
// Algorithm:
//  1. Entry at min(first bar open, proposed entry) for longs, max for
//     shorts, adjusted adversely by slippage and fee.
//  2. One optional scale-in leg armed below the entry for longs and above
//     it for shorts, offset by add_pct; the first
//     bar crossing the trigger emits one additional OPEN. Only one scale-in
//     leg is ever added.
//  3. TP/SL re-derived from the real entry price using the relative offsets
//     the strategy requested.
//  4. A bar breaching both TP and SL resolves via the crossing policy; the
//     first unambiguous breach closes the entire accumulated size with one
//     CLOSE event.
//  5. No breach by window end closes at the last bar's close.
func (p *TradeProposal) BuildEvents() []*domain.TradeEvent {
	if p.built {
		return p.events
	}
	p.built = true

	idx0 := p.opts.ExecutionDelayBars
	if idx0 < 0 || idx0 >= len(p.Window) {
		return p.events
	}

	short := p.Meta.Direction == domain.DirectionShort
	sign := 1.0
	if short {
		sign = -1.0
	}

	// 1) Real entry price: min(first bar open, proposed) for longs and
	// max for shorts. A fill never beats what the market opened at.
	firstOpen := p.Window[idx0].Open
	rawEntry := firstOpen
	if short {
		if p.Meta.EntryPrice > rawEntry {
			rawEntry = p.Meta.EntryPrice
		}
	} else {
		if p.Meta.EntryPrice < rawEntry {
			rawEntry = p.Meta.EntryPrice
		}
	}
	entryPx := p.adjustAdverse(rawEntry, sign)

	baseMeta := map[string]any{
		domain.MetaSymbol:      p.Meta.Symbol,
		domain.MetaOrigEntryTS: p.Meta.EntryTime,
		domain.MetaOrigEntryPx: p.Meta.EntryPrice,
		domain.MetaDirection:   string(p.Meta.Direction),
	}

	entries := []*domain.TradeEvent{{
		TS:    p.Window[idx0].OpenTime,
		Price: entryPx,
		Qty:   sign * p.Meta.Size,
		Kind:  domain.EventOpen,
		Meta:  legMeta(baseMeta, domain.LegInit),
	}}

	// 2) Arm the single DCA leg off the real entry price.
	var dcaPrice float64
	dcaArmed := p.opts.AddBuyPct > 0
	if dcaArmed {
		dcaPrice = entryPx * (1 - sign*p.opts.AddBuyPct/100)
	}
	dcaDone := false

	// 3) TP/SL from the real entry with the strategy's relative offsets.
	tpPx, slPx := p.bracketPrices(entryPx)

	var exit *domain.TradeEvent
	appendExit := func(ts int64, px float64, label string) {
		// Close the entire accumulated size; carry the weighted entry so the
		// portfolio manager can log the round trip.
		var total, notional float64
		for _, e := range entries {
			total += e.Qty
			notional += e.Price * e.Qty
		}
		meta := legMeta(baseMeta, "")
		delete(meta, domain.MetaLeg)
		meta[domain.MetaExit] = label
		meta[domain.MetaEntryLegs] = len(entries)
		meta[domain.MetaAvgEntryPx] = notional / total
		exit = &domain.TradeEvent{
			TS:    ts,
			Price: p.adjustAdverse(px, -sign),
			Qty:   -total,
			Kind:  domain.EventClose,
			Meta:  meta,
		}
	}

	// 4) Single forward scan: DCA trigger first, then exit checks, so a
	// scale-in can never land after the position is closed.
	for i := idx0; i < len(p.Window); i++ {
		c := &p.Window[i]

		if dcaArmed && !dcaDone {
			hit := c.Low <= dcaPrice
			if short {
				hit = c.High >= dcaPrice
			}
			if hit {
				entries = append(entries, &domain.TradeEvent{
					TS:    c.OpenTime,
					Price: p.adjustAdverse(dcaPrice, sign),
					Qty:   sign * p.Meta.Size,
					Kind:  domain.EventOpen,
					Meta:  legMeta(baseMeta, domain.LegDCA),
				})
				dcaDone = true
			}
		}

		tpHit := c.High >= tpPx
		slHit := c.Low <= slPx
		if short {
			tpHit = c.Low <= tpPx
			slHit = c.High >= slPx
		}

		switch {
		case tpHit && slHit:
			if p.resolveCrossing() == domain.ExitTypeSL {
				appendExit(c.OpenTime, slPx, domain.ExitTypeSL)
			} else {
				appendExit(c.OpenTime, tpPx, domain.ExitTypeTP)
			}
		case slHit:
			appendExit(c.OpenTime, slPx, domain.ExitTypeSL)
		case tpHit:
			appendExit(c.OpenTime, tpPx, domain.ExitTypeTP)
		}
		if exit != nil {
			break
		}
	}

	// 5) Window exhausted: close at the last bar's close.
	if exit == nil {
		last := &p.Window[len(p.Window)-1]
		appendExit(last.OpenTime, last.Close, domain.ExitTypeClose)
	}

	p.events = append(p.events, entries...)
	p.events = append(p.events, exit)
	return p.events
}

// FirstEntry returns the first entry-class event, or nil for an invalid
// proposal.
func (p *TradeProposal) FirstEntry() *domain.TradeEvent {
	for _, e := range p.BuildEvents() {
		if e.IsEntry() {
			return e
		}
	}
	return nil
}

// EntryLegs counts the entry events the proposal would enqueue from ts
// onward. Entries always land on forward-window bars, so admission must
// count every leg, DCA included, not just those at the decision timestamp.
func (p *TradeProposal) EntryLegs(from int64) int {
	var n int
	for _, e := range p.BuildEvents() {
		if e.IsEntry() && e.TS >= from {
			n++
		}
	}
	return n
}

// adjustAdverse moves a price against the trade: up for buys, down for
// sells, by the configured slippage and fee fractions.
func (p *TradeProposal) adjustAdverse(px, sign float64) float64 {
	return px * (1 + sign*p.opts.SlippagePct) * (1 + sign*p.opts.FeePct)
}

// bracketPrices re-derives TP/SL from the real entry price using the same
// relative offsets the strategy placed in the meta.
func (p *TradeProposal) bracketPrices(entryPx float64) (tp, sl float64) {
	m := &p.Meta
	if p.Meta.Direction == domain.DirectionShort {
		tp = entryPx * (1 - (m.EntryPrice-m.TPPrice)/m.EntryPrice)
		sl = entryPx * (1 + (m.SLPrice-m.EntryPrice)/m.EntryPrice)
		return tp, sl
	}
	tp = entryPx * (1 + (m.TPPrice-m.EntryPrice)/m.EntryPrice)
	sl = entryPx * (1 - (m.EntryPrice-m.SLPrice)/m.EntryPrice)
	return tp, sl
}

// resolveCrossing decides a same-bar TP+SL ambiguity. prefer_sl and
// prefer_tp are deterministic; random draws from a stream seeded per
// proposal so replays stay bit-identical.
func (p *TradeProposal) resolveCrossing() string {
	switch p.opts.CrossingPolicy {
	case domain.CrossingPreferTP:
		return domain.ExitTypeTP
	case domain.CrossingRandom:
		h := fnv.New64a()
		h.Write([]byte(p.Meta.Symbol))
		seed := p.opts.CrossingSeed ^ p.Meta.EntryTime ^ int64(h.Sum64())
		if rand.New(rand.NewSource(seed)).Intn(2) == 0 {
			return domain.ExitTypeSL
		}
		return domain.ExitTypeTP
	default:
		return domain.ExitTypeSL
	}
}

func legMeta(base map[string]any, leg string) map[string]any {
	meta := make(map[string]any, len(base)+1)
	for k, v := range base {
		meta[k] = v
	}
	if leg != "" {
		meta[domain.MetaLeg] = leg
	}
	return meta
}
