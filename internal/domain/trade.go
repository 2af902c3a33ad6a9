package domain

// Direction of a trade.
type Direction string

// Direction constants.
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Exit type codes recorded on a TradeLogEntry.
const (
	ExitTypeTP        = "TP"        // take-profit breached
	ExitTypeSL        = "SL"        // stop-loss breached
	ExitTypeClose     = "CLOSE"     // window exhausted, closed at last close
	ExitTypeFinal     = "FINAL"     // forced flat at run end
	ExitTypeLiquidate = "LIQUIDATE" // margin call
)

// Result classification constants.
const (
	ResultWin  = "WIN"
	ResultLoss = "LOSS"
)

// TradeMeta is the immutable intent of a proposed trade.
type TradeMeta struct {
	Symbol     string    `json:"symbol"`
	EntryTime  int64     `json:"entry_time"` // ms epoch
	EntryPrice float64   `json:"entry_price"`
	TPPrice    float64   `json:"tp_price"`
	SLPrice    float64   `json:"sl_price"`
	Size       float64   `json:"size"`
	Direction  Direction `json:"direction"`
}

// TradeLogEntry records one closed round-trip. It is appended by the
// portfolio manager when an exit-class event is ingested; Size and
// EntryPrice reflect the accumulated position (all entry legs,
// quantity-weighted), not just the first leg.
type TradeLogEntry struct {
	Symbol     string    `json:"symbol"`
	EntryTime  int64     `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   int64     `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Legs       int       `json:"legs"`
	Direction  Direction `json:"direction"`
	PnL        float64   `json:"pnl"`
	ReturnPct  float64   `json:"return_pct"`
	Result     string    `json:"result"`
	ExitType   string    `json:"exit_type"`
}

// NewTradeLogEntry derives pnl, return percentage and WIN/LOSS from the
// entry/exit pair, honoring direction.
func NewTradeLogEntry(symbol string, entryTime int64, entryPrice float64, exitTime int64, exitPrice float64, size float64, legs int, direction Direction, exitType string) TradeLogEntry {
	var pnl, returnPct float64
	if direction == DirectionShort {
		pnl = (entryPrice - exitPrice) * size
		returnPct = (entryPrice - exitPrice) / entryPrice * 100
	} else {
		pnl = (exitPrice - entryPrice) * size
		returnPct = (exitPrice - entryPrice) / entryPrice * 100
	}

	result := ResultLoss
	if pnl > 0 {
		result = ResultWin
	}

	return TradeLogEntry{
		Symbol:     symbol,
		EntryTime:  entryTime,
		EntryPrice: entryPrice,
		ExitTime:   exitTime,
		ExitPrice:  exitPrice,
		Size:       size,
		Legs:       legs,
		Direction:  direction,
		PnL:        pnl,
		ReturnPct:  returnPct,
		Result:     result,
		ExitType:   exitType,
	}
}
