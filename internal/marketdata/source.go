// Package marketdata fetches and caches the OHLCV series backtests run on.
// It provides a REST backfill source, a websocket kline streamer and a
// redis read-through cache over any candle store.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// Source fetches candles from an external market-data provider.
type Source interface {
	FetchCandles(ctx context.Context, symbol, interval string, opts FetchOptions) ([]domain.Candle, error)
}

// FetchOptions narrows a candle fetch. The zero value asks for the most
// recent candles at the provider's default limit, oldest first.
type FetchOptions struct {
	Limit       int
	StartTime   int64 // ms epoch lower bound, 0 = none
	NewestFirst bool
}

// DefaultRESTBaseURL is the Binance spot REST endpoint.
const DefaultRESTBaseURL = "https://api.binance.com"

// BinanceREST fetches klines from the Binance REST API.
type BinanceREST struct {
	BaseURL string
	Client  *http.Client
}

// NewBinanceREST creates a REST source with defaults.
func NewBinanceREST() *BinanceREST {
	return &BinanceREST{BaseURL: DefaultRESTBaseURL, Client: http.DefaultClient}
}

// FetchCandles implements Source. Invalid rows are dropped, not fatal.
func (s *BinanceREST) FetchCandles(ctx context.Context, symbol, interval string, opts FetchOptions) ([]domain.Candle, error) {
	base := s.BaseURL
	if base == "" {
		base = DefaultRESTBaseURL
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.StartTime > 0 {
		q.Set("startTime", strconv.FormatInt(opts.StartTime, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build klines request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s/%s: %w", symbol, interval, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch klines %s/%s: status %d: %s", symbol, interval, resp.StatusCode, body)
	}

	candles, err := decodeKlineRows(resp.Body)
	if err != nil {
		return nil, err
	}
	if opts.NewestFirst {
		for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
			candles[i], candles[j] = candles[j], candles[i]
		}
	}
	return candles, nil
}

// Backfill copies history from a source into a store, one symbol at a time.
func Backfill(ctx context.Context, src Source, store storage.CandleStore, symbols []string, interval string, limit int, metrics *observability.Metrics, logger *log.Logger) error {
	for _, sym := range symbols {
		candles, err := src.FetchCandles(ctx, sym, interval, FetchOptions{Limit: limit})
		if err != nil {
			metrics.RecordIngestError("rest")
			return fmt.Errorf("backfill %s: %w", sym, err)
		}
		if err := store.SaveCandles(ctx, sym, interval, candles); err != nil {
			metrics.RecordIngestError("store")
			return fmt.Errorf("store %s: %w", sym, err)
		}
		metrics.RecordCandles(sym, len(candles))
		if logger != nil {
			logger.Printf("backfilled %d candles for %s/%s", len(candles), sym, interval)
		}
	}
	return nil
}
