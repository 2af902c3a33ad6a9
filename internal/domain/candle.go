package domain

import "math"

// Candle represents one OHLCV bar.
type Candle struct {
	OpenTime int64   `json:"open_time"` // Unix epoch milliseconds
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Valid reports whether the candle carries usable OHLCV values.
func (c *Candle) Valid() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.OpenTime > 0
}

// ValidWindow reports whether a bar window is non-empty, NaN-free and
// time-ascending. Windows failing this check are skipped and counted as
// data errors, never fatal.
func ValidWindow(window []Candle) bool {
	if len(window) == 0 {
		return false
	}
	prev := int64(0)
	for i := range window {
		if !window[i].Valid() {
			return false
		}
		if window[i].OpenTime < prev {
			return false
		}
		prev = window[i].OpenTime
	}
	return true
}
