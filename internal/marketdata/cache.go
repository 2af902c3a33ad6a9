package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// DefaultCacheTTL bounds how long a cached series may serve reads.
const DefaultCacheTTL = 5 * time.Minute

// CandleCache is a read-through redis cache in front of a CandleStore.
// Writes go to the inner store and bump a per-series version key, so stale
// cached reads expire immediately without key scans. Redis failures fall
// back to the inner store; the cache never turns a healthy store into a
// failing one.
type CandleCache struct {
	inner storage.CandleStore
	rdb   redis.UniversalClient
	ttl   time.Duration
}

// NewCandleCache wraps a store with a redis cache. ttl <= 0 uses
// DefaultCacheTTL.
func NewCandleCache(inner storage.CandleStore, rdb redis.UniversalClient, ttl time.Duration) *CandleCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CandleCache{inner: inner, rdb: rdb, ttl: ttl}
}

// SaveCandles writes through to the inner store and invalidates the series.
func (c *CandleCache) SaveCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) error {
	if err := c.inner.SaveCandles(ctx, symbol, interval, candles); err != nil {
		return err
	}
	// Best effort: a failed bump only means one TTL of staleness.
	c.rdb.Incr(ctx, c.versionKey(symbol, interval))
	return nil
}

// Candles serves from redis when possible, falling back to the inner store
// and populating the cache on a miss.
func (c *CandleCache) Candles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	key, ok := c.dataKey(ctx, symbol, interval, limit)
	if ok {
		if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			var out []domain.Candle
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
		}
	}

	out, err := c.inner.Candles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	if ok {
		if raw, err := json.Marshal(out); err == nil {
			c.rdb.Set(ctx, key, raw, c.ttl)
		}
	}
	return out, nil
}

// dataKey embeds the current series version so SaveCandles invalidates all
// cached limits at once. ok is false when redis is unreachable.
func (c *CandleCache) dataKey(ctx context.Context, symbol, interval string, limit int) (string, bool) {
	ver, err := c.rdb.Get(ctx, c.versionKey(symbol, interval)).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return fmt.Sprintf("candles:%s:%s:%d:v%d", symbol, interval, limit, ver), true
}

func (c *CandleCache) versionKey(symbol, interval string) string {
	return fmt.Sprintf("candles:ver:%s:%s", symbol, interval)
}

var _ storage.CandleStore = (*CandleCache)(nil)
