package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/engine"
	"backtest-lab/internal/marketdata"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/reporting"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	// Run configuration
	configPath := flag.String("config", "", "Path to JSON run config (flags below override)")
	symbols := flag.String("symbols", "", "Comma-separated symbols, e.g. BTCUSDT,ETHUSDT")
	interval := flag.String("interval", "", "Candle interval, e.g. 1h")
	strategyName := flag.String("strategy", "", "Strategy name: peak_ema_reversal, momentum")
	market := flag.String("market", "", "Market type: SPOT or PERP")
	iterations := flag.Int("iterations", 0, "Number of decision bars")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (results)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (candles, equity curves)")
	redisAddr := flag.String("redis-addr", "", "Redis address for the candle cache (optional)")
	useMemory := flag.Bool("use-memory", false, "Backfill candles from Binance REST into memory instead of ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply database migrations before running")
	persist := flag.Bool("persist", false, "Persist the run result")

	// Output
	outputJSON := flag.Bool("json", false, "Output the raw result as JSON")
	metricsAddr := flag.String("metrics-addr", "", "Address for the Prometheus /metrics endpoint (optional)")
	verbose := flag.Bool("v", false, "Verbose engine logging")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	applyOverrides(&cfg, *symbols, *interval, *strategyName, *market, *iterations)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

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

	// Candle source: ClickHouse by default, REST-backfilled memory otherwise.
	var candleStore storage.CandleStore
	if *useMemory {
		mem := memory.NewCandleStore()
		limit := cfg.NumIterations + 200
		src := marketdata.NewBinanceREST()
		if err := marketdata.Backfill(ctx, src, mem, cfg.Symbols, cfg.Interval, limit, metrics, logger); err != nil {
			logger.Fatalf("backfill candles: %v", err)
		}
		candleStore = mem
	} else {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required when not using --use-memory")
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
		candleStore = chstore.NewCandleStore(conn)
	}

	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalf("ping redis: %v", err)
		}
		defer rdb.Close()
		candleStore = marketdata.NewCandleCache(candleStore, rdb, 0)
	}

	engLogger := log.New(os.Stderr, "[engine] ", log.LstdFlags)
	if !*verbose {
		engLogger = nil
	}

	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Candles: candleStore,
		Metrics: metrics,
		Logger:  engLogger,
	})
	if err != nil {
		logger.Fatalf("build engine: %v", err)
	}

	logger.Printf("running backtest: symbols=%s interval=%s strategy=%s market=%s",
		strings.Join(cfg.Symbols, ","), cfg.Interval, cfg.Strategy.Name, cfg.Market)

	res, err := eng.Run(ctx)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	if *persist {
		if err := persistResult(ctx, res, *postgresDSN, *clickhouseDSN, *migrate, logger); err != nil {
			logger.Fatalf("persist result: %v", err)
		}
		logger.Printf("persisted run %s", res.RunID)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(output))
		return
	}
	fmt.Print(reporting.RenderMarkdown(reporting.Compute(res)))
}

// loadConfig reads a JSON run config, or returns the defaults when no path
// is given.
func loadConfig(path string) (domain.RunConfig, error) {
	if path == "" {
		return domain.DefaultRunConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.RunConfig{}, err
	}
	defer f.Close()

	cfg := domain.DefaultRunConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return domain.RunConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// applyOverrides layers non-empty CLI flags over the loaded config.
func applyOverrides(cfg *domain.RunConfig, symbols, interval, strategy, market string, iterations int) {
	if symbols != "" {
		cfg.Symbols = strings.Split(symbols, ",")
	}
	if interval != "" {
		cfg.Interval = interval
	}
	if strategy != "" {
		cfg.Strategy.Name = strategy
	}
	if market != "" {
		cfg.Market = strings.ToUpper(market)
	}
	if iterations > 0 {
		cfg.NumIterations = iterations
	}
}

// persistResult writes the run to postgres and its equity curve to
// clickhouse, tolerating replays of the same run ID.
func persistResult(ctx context.Context, res *domain.Result, postgresDSN, clickhouseDSN string, migrate bool, logger *log.Logger) error {
	if postgresDSN == "" {
		return errors.New("--postgres-dsn is required with --persist")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
	}

	if err := pgstore.NewResultStore(pool).SaveResult(ctx, res); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Printf("run %s already persisted, skipping", res.RunID)
			return nil
		}
		return err
	}

	if clickhouseDSN == "" {
		return nil
	}
	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	return chstore.NewEquityCurveStore(conn).SaveEquityCurve(ctx, res.RunID, res.EquityCurve)
}
