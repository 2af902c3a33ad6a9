// Package memory provides in-memory store implementations for tests and
// dry runs. All stores are safe for concurrent use.
package memory

import (
	"context"
	"sort"
	"sync"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// CandleStore implements storage.CandleStore in memory.
type CandleStore struct {
	mu     sync.RWMutex
	series map[seriesKey][]domain.Candle
}

type seriesKey struct {
	symbol   string
	interval string
}

// NewCandleStore creates an empty in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{series: make(map[seriesKey][]domain.Candle)}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// SaveCandles upserts candles by open time, keeping the series ascending.
func (s *CandleStore) SaveCandles(_ context.Context, symbol, interval string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{symbol, interval}
	byTime := make(map[int64]domain.Candle, len(s.series[key])+len(candles))
	for _, c := range s.series[key] {
		byTime[c.OpenTime] = c
	}
	for _, c := range candles {
		byTime[c.OpenTime] = c
	}

	merged := make([]domain.Candle, 0, len(byTime))
	for _, c := range byTime {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].OpenTime < merged[j].OpenTime })
	s.series[key] = merged
	return nil
}

// Candles returns a copy of up to limit most recent candles, ascending.
func (s *CandleStore) Candles(_ context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.series[seriesKey{symbol, interval}]
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	out := make([]domain.Candle, len(cs))
	copy(out, cs)
	return out, nil
}
