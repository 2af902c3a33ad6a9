package reporting

import (
	"fmt"
	"strings"

	"backtest-lab/internal/domain"
)

// RenderTradeLogCSV renders a trade log as a CSV string.
func RenderTradeLogCSV(trades []domain.TradeLogEntry) string {
	var sb strings.Builder

	sb.WriteString("symbol,entry_time,entry_price,exit_time,exit_price,size,legs,direction,pnl,return_pct,result,exit_type\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%d,%.8f,%d,%.8f,%.8f,%d,%s,%.8f,%.6f,%s,%s\n",
			t.Symbol,
			t.EntryTime,
			t.EntryPrice,
			t.ExitTime,
			t.ExitPrice,
			t.Size,
			t.Legs,
			t.Direction,
			t.PnL,
			t.ReturnPct,
			t.Result,
			t.ExitType,
		))
	}

	return sb.String()
}

// RenderSymbolCSV renders the per-symbol breakdown as a CSV string.
func RenderSymbolCSV(rows []SymbolRow) string {
	var sb strings.Builder

	sb.WriteString("symbol,trades,wins,win_rate,pnl\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%.6f,%.8f\n",
			r.Symbol, r.Trades, r.Wins, r.WinRate, r.PnL))
	}

	return sb.String()
}
