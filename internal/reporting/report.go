// Package reporting turns a finished run result into summary statistics
// and rendered reports.
package reporting

import (
	"math"
	"sort"
	"time"

	"backtest-lab/internal/domain"
)

// Report is the computed summary of one backtest run.
type Report struct {
	GeneratedAt time.Time
	RunID       string
	Strategy    string
	Market      string
	Interval    string
	SymbolCount int

	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	TotalPnL     float64
	ProfitFactor float64
	FinalCash    float64

	ReturnMean   float64
	ReturnMedian float64
	ReturnP10    float64
	ReturnP90    float64

	MaxDrawdown          float64 // fraction of peak equity, 0..1
	MaxConsecutiveLosses int

	ErrorCount    int
	SkippedTrades int

	BySymbol   []SymbolRow
	ByExitType []ExitTypeRow
}

// SymbolRow aggregates trades of one symbol.
type SymbolRow struct {
	Symbol  string
	Trades  int
	Wins    int
	WinRate float64
	PnL     float64
}

// ExitTypeRow aggregates trades of one exit type.
type ExitTypeRow struct {
	ExitType string
	Trades   int
	PnL      float64
}

// Compute derives the full report from a run result. The trade log is
// re-sorted by exit time so order-dependent statistics are stable no
// matter how the caller obtained the result.
func Compute(res *domain.Result) *Report {
	r := &Report{
		GeneratedAt:   time.Now().UTC(),
		RunID:         res.RunID,
		Strategy:      res.Strategy,
		Market:        res.Market,
		Interval:      res.Interval,
		SymbolCount:   res.SymbolCount,
		FinalCash:     res.FinalCash,
		ErrorCount:    res.ErrorCount,
		SkippedTrades: res.SkippedTrades,
	}

	trades := make([]domain.TradeLogEntry, len(res.TradeLog))
	copy(trades, res.TradeLog)
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].ExitTime != trades[j].ExitTime {
			return trades[i].ExitTime < trades[j].ExitTime
		}
		return trades[i].Symbol < trades[j].Symbol
	})

	r.TotalTrades = len(trades)
	var grossProfit, grossLoss float64
	var streak int
	returns := make([]float64, 0, len(trades))

	for _, t := range trades {
		r.TotalPnL += t.PnL
		returns = append(returns, t.ReturnPct)

		if t.Result == domain.ResultWin {
			r.Wins++
			grossProfit += t.PnL
			streak = 0
		} else {
			r.Losses++
			grossLoss += -t.PnL
			streak++
			if streak > r.MaxConsecutiveLosses {
				r.MaxConsecutiveLosses = streak
			}
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.TotalTrades)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		r.ProfitFactor = math.Inf(1)
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	r.ReturnMean = mean(returns)
	r.ReturnMedian = percentile(sorted, 0.50)
	r.ReturnP10 = percentile(sorted, 0.10)
	r.ReturnP90 = percentile(sorted, 0.90)

	r.MaxDrawdown = maxDrawdown(res.EquityCurve)
	r.BySymbol = bySymbol(trades)
	r.ByExitType = byExitType(trades)
	return r
}

// maxDrawdown is the largest peak-to-trough equity drop as a fraction of
// the peak.
func maxDrawdown(curve []domain.EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func bySymbol(trades []domain.TradeLogEntry) []SymbolRow {
	agg := make(map[string]*SymbolRow)
	for _, t := range trades {
		row, ok := agg[t.Symbol]
		if !ok {
			row = &SymbolRow{Symbol: t.Symbol}
			agg[t.Symbol] = row
		}
		row.Trades++
		row.PnL += t.PnL
		if t.Result == domain.ResultWin {
			row.Wins++
		}
	}

	out := make([]SymbolRow, 0, len(agg))
	for _, row := range agg {
		if row.Trades > 0 {
			row.WinRate = float64(row.Wins) / float64(row.Trades)
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func byExitType(trades []domain.TradeLogEntry) []ExitTypeRow {
	agg := make(map[string]*ExitTypeRow)
	for _, t := range trades {
		row, ok := agg[t.ExitType]
		if !ok {
			row = &ExitTypeRow{ExitType: t.ExitType}
			agg[t.ExitType] = row
		}
		row.Trades++
		row.PnL += t.PnL
	}

	out := make([]ExitTypeRow, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExitType < out[j].ExitType })
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile reads from a pre-sorted slice using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
