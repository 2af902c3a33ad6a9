package domain

// EquityPoint is one sample of the equity curve: cash plus unrealised pnl
// at a bar timestamp.
type EquityPoint struct {
	Time   int64   `json:"time"`
	Equity float64 `json:"equity"`
}

// Result is the sole contract the surrounding API/task-queue layer depends
// on. Its JSON shape must stay stable and independent of host process
// identity.
type Result struct {
	RunID         string          `json:"run_id"`
	TradeLog      []TradeLogEntry `json:"trade_log"`
	FinalCash     float64         `json:"final_cash"`
	EquityCurve   []EquityPoint   `json:"equity_curve"`
	ErrorCount    int             `json:"error_count"`
	SkippedTrades int             `json:"skipped_trades"`
	SymbolCount   int             `json:"symbol_count"`
	Market        string          `json:"market"`
	Interval      string          `json:"interval"`
	Strategy      string          `json:"strategy"`
}
