package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL. The equity
// curve is not persisted here; it lives in the ClickHouse equity store.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// SaveResult inserts the run summary and its trade log atomically. Returns
// ErrDuplicateKey if the run ID already exists.
func (s *ResultStore) SaveResult(ctx context.Context, res *domain.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	runQuery := `
		INSERT INTO runs (
			run_id, final_cash, error_count, skipped_trades, symbol_count,
			market, interval, strategy
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.Exec(ctx, runQuery,
		res.RunID, res.FinalCash, res.ErrorCount, res.SkippedTrades,
		res.SymbolCount, res.Market, res.Interval, res.Strategy,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}

	tradeQuery := `
		INSERT INTO trade_log (
			trade_id, run_id, symbol, entry_time, entry_price,
			exit_time, exit_price, size, legs, direction,
			pnl, return_pct, result, exit_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for _, t := range res.TradeLog {
		_, err := tx.Exec(ctx, tradeQuery,
			idhash.TradeID(res.RunID, t), res.RunID, t.Symbol, t.EntryTime, t.EntryPrice,
			t.ExitTime, t.ExitPrice, t.Size, t.Legs, string(t.Direction),
			t.PnL, t.ReturnPct, t.Result, t.ExitType,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade log entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Result retrieves a run and its trade log. Returns ErrNotFound if the run
// does not exist.
func (s *ResultStore) Result(ctx context.Context, runID string) (*domain.Result, error) {
	runQuery := `
		SELECT run_id, final_cash, error_count, skipped_trades, symbol_count,
		       market, interval, strategy
		FROM runs
		WHERE run_id = $1
	`
	var res domain.Result
	err := s.pool.QueryRow(ctx, runQuery, runID).Scan(
		&res.RunID, &res.FinalCash, &res.ErrorCount, &res.SkippedTrades,
		&res.SymbolCount, &res.Market, &res.Interval, &res.Strategy,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	tradeQuery := `
		SELECT symbol, entry_time, entry_price, exit_time, exit_price,
		       size, legs, direction, pnl, return_pct, result, exit_type
		FROM trade_log
		WHERE run_id = $1
		ORDER BY exit_time ASC, symbol ASC
	`
	rows, err := s.pool.Query(ctx, tradeQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade log: %w", err)
	}
	defer rows.Close()

	res.TradeLog, err = scanTradeLog(rows)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListRunIDs returns all stored run IDs, newest first.
func (s *ResultStore) ListRunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT run_id FROM runs ORDER BY created_at DESC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run ids: %w", err)
	}
	return ids, nil
}

// scanTradeLog scans multiple rows into trade log entries.
func scanTradeLog(rows pgx.Rows) ([]domain.TradeLogEntry, error) {
	var trades []domain.TradeLogEntry
	for rows.Next() {
		var t domain.TradeLogEntry
		var direction string
		err := rows.Scan(
			&t.Symbol, &t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice,
			&t.Size, &t.Legs, &direction, &t.PnL, &t.ReturnPct, &t.Result, &t.ExitType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade log row: %w", err)
		}
		t.Direction = domain.Direction(direction)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade log rows: %w", err)
	}
	return trades, nil
}
