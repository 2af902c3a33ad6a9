package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"backtest-lab/internal/reporting"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	runID := flag.String("run-id", "", "Run ID to report on (empty lists stored runs)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the equity curve (optional)")
	format := flag.String("format", "markdown", "Output format: markdown, csv, json")
	output := flag.String("o", "", "Output file (default stdout)")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	results := pgstore.NewResultStore(pool)

	if *runID == "" {
		ids, err := results.ListRunIDs(ctx)
		if err != nil {
			logger.Fatalf("list runs: %v", err)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	res, err := results.Result(ctx, *runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.Fatalf("run %s not found", *runID)
		}
		logger.Fatalf("load run: %v", err)
	}

	// The equity curve lives in clickhouse; drawdown stays zero without it.
	if *clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		curve, err := chstore.NewEquityCurveStore(conn).EquityCurve(ctx, *runID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Fatalf("load equity curve: %v", err)
		}
		res.EquityCurve = curve
	}

	var rendered string
	switch *format {
	case "markdown":
		rendered = reporting.RenderMarkdown(reporting.Compute(res))
	case "csv":
		rendered = reporting.RenderTradeLogCSV(res.TradeLog)
	case "json":
		raw, err := json.MarshalIndent(reporting.Compute(res), "", "  ")
		if err != nil {
			logger.Fatalf("marshal report: %v", err)
		}
		rendered = string(raw) + "\n"
	default:
		logger.Fatalf("unknown format %q, want markdown, csv or json", *format)
	}

	if *output == "" {
		fmt.Print(rendered)
		return
	}
	if err := os.WriteFile(*output, []byte(rendered), 0o644); err != nil {
		logger.Fatalf("write %s: %v", *output, err)
	}
	logger.Printf("wrote %s report to %s", *format, *output)
}
