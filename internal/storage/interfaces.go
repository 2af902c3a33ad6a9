// Package storage defines the persistence interfaces the engine and the
// command binaries consume. Implementations live in subpackages: memory
// for tests and dry runs, postgres for run results, clickhouse for candle
// and equity-curve series.
package storage

import (
	"context"
	"errors"

	"backtest-lab/internal/domain"
)

// Sentinel errors shared by all implementations.
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrDuplicateKey = errors.New("storage: duplicate key")
)

// CandleStore persists and serves OHLCV series.
type CandleStore interface {
	// SaveCandles upserts candles for one symbol/interval pair.
	SaveCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) error

	// Candles returns up to limit most recent candles, ascending by open
	// time. limit <= 0 returns the whole series.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

// ResultStore persists completed run results keyed by run ID.
type ResultStore interface {
	SaveResult(ctx context.Context, res *domain.Result) error
	Result(ctx context.Context, runID string) (*domain.Result, error)
	ListRunIDs(ctx context.Context) ([]string, error)
}

// EquityCurveStore persists per-run equity curves for analytical queries.
type EquityCurveStore interface {
	SaveEquityCurve(ctx context.Context, runID string, points []domain.EquityPoint) error
	EquityCurve(ctx context.Context, runID string) ([]domain.EquityPoint, error)
}
