package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/marketdata"
	"backtest-lab/internal/observability"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/migrations"
)

func main() {
	symbols := flag.String("symbols", "", "Comma-separated symbols, e.g. BTCUSDT,ETHUSDT (required)")
	interval := flag.String("interval", "1h", "Candle interval")
	limit := flag.Int("limit", 1000, "Number of historical candles to backfill per symbol")
	stream := flag.Bool("stream", false, "Keep streaming closed klines over websocket after backfill")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (required)")
	migrate := flag.Bool("migrate", false, "Apply ClickHouse migrations before ingesting")
	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (optional)")

	flag.Parse()

	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	if *symbols == "" {
		logger.Fatal("--symbols is required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}
	symbolList := strings.Split(*symbols, ",")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	metrics := observability.NewMetrics(nil, "")
	if *metricsAddr != "" {
		go func() {
			logger.Printf("serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, observability.Handler()); err != nil {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	conn, err := chstore.NewConn(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	defer conn.Close()

	if *migrate {
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
	}
	store := chstore.NewCandleStore(conn)

	if *limit > 0 {
		src := marketdata.NewBinanceREST()
		if err := marketdata.Backfill(ctx, src, store, symbolList, *interval, *limit, metrics, logger); err != nil {
			logger.Fatalf("backfill: %v", err)
		}
	}

	if !*stream {
		logger.Printf("backfill complete")
		return
	}

	streamer := marketdata.NewKlineStreamer("", symbolList, *interval, func(symbol string, c domain.Candle) {
		if err := store.SaveCandles(ctx, symbol, *interval, []domain.Candle{c}); err != nil {
			metrics.RecordIngestError("store")
			logger.Printf("store candle %s@%d: %v", symbol, c.OpenTime, err)
		}
	}, metrics, logger)

	logger.Printf("streaming %s klines for %s", *interval, *symbols)
	streamer.Run(ctx)
}
