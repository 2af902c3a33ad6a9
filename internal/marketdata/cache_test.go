package marketdata

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage/memory"
)

// unreachableRedis returns a client whose commands always fail, exercising
// the cache's fallback path without a server.
func unreachableRedis() redis.UniversalClient {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

func TestCandleCache_FallsBackWhenRedisDown(t *testing.T) {
	inner := memory.NewCandleStore()
	cache := NewCandleCache(inner, unreachableRedis(), 0)
	ctx := context.Background()

	candles := []domain.Candle{
		{OpenTime: 1000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{OpenTime: 2000, Open: 100, High: 101, Low: 99, Close: 101, Volume: 1},
	}
	require.NoError(t, cache.SaveCandles(ctx, "BTCUSDT", "1h", candles))

	got, err := cache.Candles(ctx, "BTCUSDT", "1h", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = cache.Candles(ctx, "BTCUSDT", "1h", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2000), got[0].OpenTime)
}

func TestCandleCache_KeysEmbedSeriesVersion(t *testing.T) {
	cache := NewCandleCache(memory.NewCandleStore(), unreachableRedis(), 0)

	assert.Equal(t, "candles:ver:BTCUSDT:1h", cache.versionKey("BTCUSDT", "1h"))

	// Unreachable redis means no usable data key.
	_, ok := cache.dataKey(context.Background(), "BTCUSDT", "1h", 100)
	assert.False(t, ok)
}
