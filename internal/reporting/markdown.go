package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Backtest Report %s\n\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategy: %s | Market: %s | Interval: %s | Symbols: %d\n\n",
		r.Strategy, r.Market, r.Interval, r.SymbolCount))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", r.Wins, r.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", r.WinRate))
	sb.WriteString(fmt.Sprintf("| Total PnL | %.2f |\n", r.TotalPnL))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", formatProfitFactor(r.ProfitFactor)))
	sb.WriteString(fmt.Sprintf("| Final Cash | %.2f |\n", r.FinalCash))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", r.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", r.MaxConsecutiveLosses))
	sb.WriteString(fmt.Sprintf("| Return Mean / Median | %.4f / %.4f |\n", r.ReturnMean, r.ReturnMedian))
	sb.WriteString(fmt.Sprintf("| Return P10 / P90 | %.4f / %.4f |\n", r.ReturnP10, r.ReturnP90))
	sb.WriteString(fmt.Sprintf("| Skipped Trades | %d |\n", r.SkippedTrades))
	sb.WriteString(fmt.Sprintf("| Errors | %d |\n", r.ErrorCount))
	sb.WriteString("\n")

	sb.WriteString("## Per Symbol\n\n")
	if len(r.BySymbol) > 0 {
		sb.WriteString("| Symbol | Trades | Wins | WinRate | PnL |\n")
		sb.WriteString("|--------|--------|------|---------|-----|\n")
		for _, row := range r.BySymbol {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.2f |\n",
				row.Symbol, row.Trades, row.Wins, row.WinRate, row.PnL))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Per Exit Type\n\n")
	if len(r.ByExitType) > 0 {
		sb.WriteString("| Exit | Trades | PnL |\n")
		sb.WriteString("|------|--------|-----|\n")
		for _, row := range r.ByExitType {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f |\n", row.ExitType, row.Trades, row.PnL))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", pf)
}
