package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-lab/internal/storage/memory"
)

const klinesPayload = `[
	[1000, "100.0", "101.0", "99.0", "100.5", "12.5", 1999, "0", 10, "0", "0", "0"],
	[2000, "100.5", "102.0", "100.0", "101.5", "8.25", 2999, "0", 10, "0", "0", "0"]
]`

func TestDecodeKlineRows(t *testing.T) {
	candles, err := decodeKlineRows(strings.NewReader(klinesPayload))
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(1000), candles[0].OpenTime)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 101.0, candles[0].High)
	assert.Equal(t, 99.0, candles[0].Low)
	assert.Equal(t, 100.5, candles[0].Close)
	assert.Equal(t, 12.5, candles[0].Volume)
}

func TestDecodeKlineRows_DropsInvalidRows(t *testing.T) {
	payload := `[
		[1000, "100.0", "101.0", "99.0", "100.5", "1.0"],
		[0, "100.0", "101.0", "99.0", "100.5", "1.0"],
		[2000, "abc"],
		[3000, "100.0", "101.0", "99.0", "100.5", "1.0"]
	]`

	candles, err := decodeKlineRows(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1000), candles[0].OpenTime)
	assert.Equal(t, int64(3000), candles[1].OpenTime)
}

func TestDecodeKlineRows_BadPayload(t *testing.T) {
	_, err := decodeKlineRows(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestBinanceREST_FetchCandles(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(klinesPayload))
	}))
	defer srv.Close()

	src := &BinanceREST{BaseURL: srv.URL, Client: srv.Client()}
	candles, err := src.FetchCandles(context.Background(), "BTCUSDT", "1h", FetchOptions{Limit: 500, StartTime: 1000})
	require.NoError(t, err)
	assert.Len(t, candles, 2)

	assert.Equal(t, "/api/v3/klines", gotPath)
	assert.Contains(t, gotQuery, "symbol=BTCUSDT")
	assert.Contains(t, gotQuery, "interval=1h")
	assert.Contains(t, gotQuery, "limit=500")
	assert.Contains(t, gotQuery, "startTime=1000")
}

func TestBinanceREST_NewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(klinesPayload))
	}))
	defer srv.Close()

	src := &BinanceREST{BaseURL: srv.URL, Client: srv.Client()}
	candles, err := src.FetchCandles(context.Background(), "BTCUSDT", "1h", FetchOptions{NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(2000), candles[0].OpenTime)
	assert.Equal(t, int64(1000), candles[1].OpenTime)
}

func TestBinanceREST_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	src := &BinanceREST{BaseURL: srv.URL, Client: srv.Client()}
	_, err := src.FetchCandles(context.Background(), "NOPE", "1h", FetchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestBackfill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(klinesPayload))
	}))
	defer srv.Close()

	src := &BinanceREST{BaseURL: srv.URL, Client: srv.Client()}
	store := memory.NewCandleStore()

	err := Backfill(context.Background(), src, store, []string{"BTCUSDT", "ETHUSDT"}, "1h", 500, nil, nil)
	require.NoError(t, err)

	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		cs, err := store.Candles(context.Background(), sym, "1h", 0)
		require.NoError(t, err)
		assert.Len(t, cs, 2, sym)
	}
}

func TestStreamURL(t *testing.T) {
	s := NewKlineStreamer("", []string{"BTCUSDT", "ETHUSDT"}, "1h", nil, nil, nil)
	assert.Equal(t,
		"wss://stream.binance.com:9443/stream?streams=btcusdt@kline_1h/ethusdt@kline_1h",
		s.streamURL())
}

func TestWireKlineCandle(t *testing.T) {
	k := wireKline{OpenTime: 1000, Open: "100.0", High: "101.0", Low: "99.0", Close: "100.5", Volume: "2.5", Closed: true}

	c := k.candle()
	assert.Equal(t, int64(1000), c.OpenTime)
	assert.Equal(t, 100.5, c.Close)
	assert.True(t, c.Valid())
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second))
	assert.Equal(t, time.Minute, nextBackoff(40*time.Second))
	assert.Equal(t, time.Minute, nextBackoff(time.Minute))
}
