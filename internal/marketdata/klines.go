package marketdata

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"backtest-lab/internal/domain"
)

// decodeKlineRows parses the Binance klines array-of-arrays payload. Each
// row mixes numbers (timestamps) with strings (prices); rows that fail
// validation are dropped.
func decodeKlineRows(r io.Reader) ([]domain.Candle, error) {
	var rows [][]any
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines payload: %w", err)
	}

	out := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		c := domain.Candle{
			OpenTime: int64(asFloat(row[0])),
			Open:     asFloat(row[1]),
			High:     asFloat(row[2]),
			Low:      asFloat(row[3]),
			Close:    asFloat(row[4]),
			Volume:   asFloat(row[5]),
		}
		if !c.Valid() {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}
