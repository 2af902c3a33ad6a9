package domain

// EventKind classifies a TradeEvent.
type EventKind string

// Event kind constants.
const (
	EventOpen             EventKind = "OPEN"              // open new leg
	EventReduce           EventKind = "REDUCE"            // close part of a leg
	EventClose            EventKind = "CLOSE"             // close remaining size
	EventModifyStopTarget EventKind = "MODIFY_STOP_TARGET" // change stop / target
	EventFunding          EventKind = "FUNDING"           // perp funding cash-flow
	EventLiquidate        EventKind = "LIQUIDATE"         // forced close
	EventCustom           EventKind = "CUSTOM"            // anything else
)

// Well-known TradeEvent meta keys.
const (
	MetaSymbol       = "symbol"
	MetaOrigEntryTS  = "orig_entry_ts"
	MetaOrigEntryPx  = "orig_entry_px"
	MetaLeg          = "leg"
	MetaExit         = "exit"
	MetaEntryLegs    = "entry_legs"
	MetaAvgEntryPx   = "avg_entry_px"
	MetaDirection    = "direction"
	MetaFundingCash  = "funding_cash"
	MetaBookPrice    = "book_px"
	MetaOverflow     = "overflow"
)

// Leg labels used in event meta.
const (
	LegInit = "INIT"
	LegDCA  = "DCA"
)

// TradeEvent is an immutable, priced, timestamped change in position intent.
// Qty is signed: positive increases a long (or reduces a short), negative the
// opposite. Meta always contains MetaSymbol. Events are ordered by (TS, Seq)
// where Seq is assigned by the queue at insertion time, so replay order is
// total and FIFO on timestamp ties.
type TradeEvent struct {
	TS    int64
	Price float64
	Qty   float64
	Kind  EventKind
	Meta  map[string]any
}

// Symbol returns the symbol from event meta, or "UNK" when absent.
func (e *TradeEvent) Symbol() string {
	if s, ok := e.Meta[MetaSymbol].(string); ok {
		return s
	}
	return "UNK"
}

// IsEntry reports whether the event opens exposure.
func (e *TradeEvent) IsEntry() bool {
	return e.Kind == EventOpen
}

// IsExit reports whether the event belongs to the exit class.
func (e *TradeEvent) IsExit() bool {
	return e.Kind == EventReduce || e.Kind == EventClose || e.Kind == EventLiquidate
}

// CloneWithQty returns a copy of the event with a different quantity.
// The meta map is shallow-copied so the original stays immutable.
func (e *TradeEvent) CloneWithQty(qty float64) *TradeEvent {
	meta := make(map[string]any, len(e.Meta))
	for k, v := range e.Meta {
		meta[k] = v
	}
	return &TradeEvent{TS: e.TS, Price: e.Price, Qty: qty, Kind: e.Kind, Meta: meta}
}
