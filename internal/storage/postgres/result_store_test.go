package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func sampleRunResult(runID string) *domain.Result {
	return &domain.Result{
		RunID:         runID,
		FinalCash:     100_030.5,
		ErrorCount:    1,
		SkippedTrades: 2,
		SymbolCount:   2,
		Market:        domain.MarketSpot,
		Interval:      "1h",
		Strategy:      "momentum",
		TradeLog: []domain.TradeLogEntry{
			domain.NewTradeLogEntry("BTCUSDT", 1000, 100, 2000, 110, 1, 1, domain.DirectionLong, domain.ExitTypeTP),
			domain.NewTradeLogEntry("ETHUSDT", 1500, 50, 3000, 48, 2, 2, domain.DirectionLong, domain.ExitTypeSL),
		},
	}
}

func TestResultStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	want := sampleRunResult("run_0000000000000001")
	require.NoError(t, store.SaveResult(ctx, want))

	got, err := store.Result(ctx, want.RunID)
	require.NoError(t, err)

	assert.Equal(t, want.RunID, got.RunID)
	assert.InDelta(t, want.FinalCash, got.FinalCash, 1e-9)
	assert.Equal(t, want.ErrorCount, got.ErrorCount)
	assert.Equal(t, want.SkippedTrades, got.SkippedTrades)
	assert.Equal(t, want.Market, got.Market)
	assert.Equal(t, want.Strategy, got.Strategy)

	require.Len(t, got.TradeLog, 2)
	// Ordered by exit time.
	assert.Equal(t, "BTCUSDT", got.TradeLog[0].Symbol)
	assert.Equal(t, domain.ExitTypeTP, got.TradeLog[0].ExitType)
	assert.Equal(t, domain.ResultWin, got.TradeLog[0].Result)
	assert.Equal(t, "ETHUSDT", got.TradeLog[1].Symbol)
	assert.Equal(t, 2, got.TradeLog[1].Legs)
	assert.InDelta(t, -4.0, got.TradeLog[1].PnL, 1e-9)
}

func TestResultStore_DuplicateRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	res := sampleRunResult("run_0000000000000002")
	require.NoError(t, store.SaveResult(ctx, res))

	err := store.SaveResult(ctx, res)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The failed insert must not leave partial trade log rows behind.
	got, err := store.Result(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, got.TradeLog, 2)
}

func TestResultStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)

	_, err := store.Result(context.Background(), "run_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResultStore_ListRunIDs(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewResultStore(pool)
	ctx := context.Background()

	for _, id := range []string{"run_a", "run_b", "run_c"} {
		res := sampleRunResult(id)
		res.TradeLog = nil
		require.NoError(t, store.SaveResult(ctx, res))
	}

	ids, err := store.ListRunIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.ElementsMatch(t, []string{"run_a", "run_b", "run_c"}, ids)
}
