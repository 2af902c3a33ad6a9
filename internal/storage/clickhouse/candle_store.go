package clickhouse

import (
	"context"
	"fmt"
	"sort"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse. The backing
// table is a ReplacingMergeTree keyed on (symbol, interval, open_time), so
// re-ingesting a series overwrites instead of duplicating.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// SaveCandles inserts candles for one symbol/interval pair in a single
// batch.
func (s *CandleStore) SaveCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval, open_time, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i := range candles {
		c := &candles[i]
		err = batch.Append(
			symbol, interval, uint64(c.OpenTime),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Candles returns up to limit most recent candles, ascending by open time.
func (s *CandleStore) Candles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	query := `
		SELECT open_time, open, high, low, close, volume
		FROM candles FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time DESC
	`
	args := []any{symbol, interval}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []domain.Candle
	for rows.Next() {
		var c domain.Candle
		var openTime uint64
		if err := rows.Scan(&openTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}
		c.OpenTime = int64(openTime)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	// Newest-first fetch, oldest-first contract.
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}
