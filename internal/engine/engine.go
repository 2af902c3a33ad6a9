// Package engine runs multi-symbol backtests over a shared bar clock.
// Per-symbol strategy decisions fan out to a bounded worker pool, admitted
// proposals land on one portfolio, and every bar settles in global
// timestamp order so results are independent of worker scheduling.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/idhash"
	"backtest-lab/internal/ledger"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/portfolio"
	"backtest-lab/internal/proposal"
	"backtest-lab/internal/storage"
	"backtest-lab/internal/strategy"
)

// Engine errors.
var (
	ErrNoCandleStore = errors.New("engine: candle store is required")
	ErrNoCandles     = errors.New("engine: no candle data for configured symbols")
)

// barManager is the portfolio surface the engine drives. Satisfied by
// portfolio.Manager and its perpetual-futures decorator.
type barManager interface {
	TryExecute(p *proposal.TradeProposal, nowTS int64) bool
	OnBar(ts int64, marks map[string]float64)
	FinalFlush(ts int64, marks map[string]float64)
	ErrorCount() int
	Results() domain.Result
}

// Engine executes one backtest configuration. Construct with New; a single
// Engine may run repeatedly, each Run builds fresh portfolio state.
type Engine struct {
	cfg     domain.RunConfig
	strat   strategy.Strategy
	candles storage.CandleStore

	specs   map[string]portfolio.ContractSpec
	funding portfolio.FundingProvider
	risk    portfolio.RiskCheck

	metrics *observability.Metrics
	logger  *log.Logger
}

// Options configures an Engine.
type Options struct {
	Config  domain.RunConfig
	Candles storage.CandleStore

	// Strategy overrides resolution from Config.Strategy when non-nil.
	Strategy strategy.Strategy

	// Perp-only knobs, ignored for SPOT runs.
	Specs   map[string]portfolio.ContractSpec
	Funding portfolio.FundingProvider

	Risk    portfolio.RiskCheck
	Metrics *observability.Metrics
	Logger  *log.Logger
}

// New validates the configuration and resolves the strategy. Policy specs
// are resolved per Run so stateful models never leak across runs.
func New(opts Options) (*Engine, error) {
	if opts.Candles == nil {
		return nil, ErrNoCandleStore
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	strat := opts.Strategy
	if strat == nil {
		s, err := strategy.FromSpec(opts.Config.Strategy)
		if err != nil {
			return nil, err
		}
		strat = s
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Engine{
		cfg:     opts.Config,
		strat:   strat,
		candles: opts.Candles,
		specs:   opts.Specs,
		funding: opts.Funding,
		risk:    opts.Risk,
		metrics: opts.Metrics,
		logger:  logger,
	}, nil
}

// Run executes the backtest to completion and returns the assembled result.
func (e *Engine) Run(ctx context.Context) (*domain.Result, error) {
	start := time.Now()

	res, err := e.run(ctx)
	if err != nil {
		e.metrics.RecordRun("error", time.Since(start).Seconds())
		return nil, err
	}
	e.metrics.RecordRun("ok", time.Since(start).Seconds())
	return res, nil
}

func (e *Engine) run(ctx context.Context) (*domain.Result, error) {
	series, err := e.loadSeries(ctx)
	if err != nil {
		return nil, err
	}

	timeline := Timeline(series)
	if len(timeline) == 0 {
		return nil, ErrNoCandles
	}

	mgr, err := e.buildManager()
	if err != nil {
		return nil, err
	}

	syms := make([]string, 0, len(series))
	for sym := range series {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	index := indexByTime(series)
	lookback := e.strat.RequiredLookback()
	marks := make(map[string]float64, len(series))

	var decideErrors, admitted, skipped int

	for _, chunk := range Chunk(timeline, e.cfg.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, ts := range chunk {
			props, errs := e.decide(ctx, ts, syms, series, index, lookback)
			decideErrors += errs

			// Proposals apply in symbol order so worker scheduling never
			// leaks into portfolio state.
			sort.Slice(props, func(i, j int) bool {
				return props[i].Meta.Symbol < props[j].Meta.Symbol
			})
			for _, p := range props {
				ok := mgr.TryExecute(p, ts)
				if ok {
					admitted++
				} else {
					skipped++
				}
				e.metrics.RecordProposal(ok)
			}

			for _, sym := range syms {
				if i, ok := index[sym][ts]; ok {
					marks[sym] = series[sym][i].Close
				}
			}
			mgr.OnBar(ts, marks)
			e.metrics.RecordBar()
		}
		e.logger.Printf("chunk done: %d bars through ts=%d, admitted=%d skipped=%d",
			len(chunk), chunk[len(chunk)-1], admitted, skipped)
	}

	// One synthetic bar past the data drains any pending events and
	// flattens every surviving position.
	mgr.FinalFlush(timeline[len(timeline)-1]+1, marks)

	res := mgr.Results()
	res.RunID = idhash.RunID(e.cfg)
	res.ErrorCount = mgr.ErrorCount() + decideErrors
	res.SkippedTrades = skipped
	res.SymbolCount = len(series)
	res.Market = e.cfg.Market
	res.Interval = e.cfg.Interval
	res.Strategy = e.strat.Name()

	e.logger.Printf("run %s: %d trades, %d skipped, %d errors, final cash %.2f",
		res.RunID, len(res.TradeLog), res.SkippedTrades, res.ErrorCount, res.FinalCash)
	return &res, nil
}

// decide evaluates the strategy for every symbol that has a bar at ts,
// bounded by the configured worker count. Decision failures are counted
// and skipped, never fatal.
func (e *Engine) decide(ctx context.Context, ts int64, syms []string, series map[string][]domain.Candle, index map[string]map[int64]int, lookback int) ([]*proposal.TradeProposal, int) {
	var (
		mu    sync.Mutex
		props []*proposal.TradeProposal
		errs  int
	)

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, sym := range syms {
		i, ok := index[sym][ts]
		if !ok || i+1 < lookback {
			continue
		}
		cs := series[sym]
		if i+1 >= len(cs) {
			// Last bar of the series has no forward window to fill into.
			continue
		}
		sym, i := sym, i

		g.Go(func() error {
			window := cs[i+1-lookback : i+1]
			d, err := e.strat.Decide(window, e.cfg.Interval, e.cfg.TPRatio, e.cfg.SLRatio)
			if err != nil {
				e.logger.Printf("decide %s@%d: %v", sym, ts, err)
				mu.Lock()
				errs++
				mu.Unlock()
				return nil
			}
			if d == nil || d.Signal == strategy.SignalNone {
				return nil
			}

			dir := d.Direction
			if dir == "" {
				dir = domain.DirectionLong
				if d.Signal == strategy.SignalSell {
					dir = domain.DirectionShort
				}
			}

			p := proposal.New(domain.TradeMeta{
				Symbol:     sym,
				EntryTime:  ts,
				EntryPrice: d.EntryPrice,
				TPPrice:    d.TPPrice,
				SLPrice:    d.SLPrice,
				Size:       1,
				Direction:  dir,
			}, cs[i+1:], proposal.BuildOptions{
				AddBuyPct:          e.cfg.AddBuyPct,
				FeePct:             e.cfg.FeePct / 100,
				SlippagePct:        e.cfg.SlippagePct / 100,
				ExecutionDelayBars: e.cfg.ExecutionDelayBars,
				CrossingPolicy:     e.cfg.CrossingPolicy,
				CrossingSeed:       e.cfg.CrossingSeed,
			})

			// Build in the worker; application on the bar loop then only
			// touches portfolio state.
			if len(p.BuildEvents()) == 0 {
				return nil
			}

			mu.Lock()
			props = append(props, p)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return props, errs
}

// buildManager resolves every policy spec and assembles a fresh portfolio,
// decorated with perp mechanics for PERP runs.
func (e *Engine) buildManager() (barManager, error) {
	fee, err := ledger.FeeFromSpec(e.cfg.Fee)
	if err != nil {
		return nil, err
	}
	slip, err := ledger.SlippageFromSpec(e.cfg.Slippage, e.cfg.CrossingSeed)
	if err != nil {
		return nil, err
	}
	fill, err := ledger.FillPolicyFromSpec(e.cfg.Fill, fee, slip)
	if err != nil {
		return nil, err
	}
	capacity, err := portfolio.CapacityFromSpec(e.cfg.Capacity)
	if err != nil {
		return nil, err
	}
	sizing, err := portfolio.SizingFromSpec(e.cfg.Sizing)
	if err != nil {
		return nil, err
	}

	base := portfolio.NewManager(portfolio.Options{
		InitialCash: e.cfg.InitialCash,
		Capacity:    capacity,
		Sizing:      sizing,
		Risk:        e.risk,
		Fee:         fee,
		Slippage:    slip,
		Fill:        fill,
		Logger:      e.logger,
	})

	if e.cfg.Market == domain.MarketPerp {
		return portfolio.NewPerpManager(base, e.specs, e.funding), nil
	}
	return base, nil
}

// loadSeries fetches candles for every configured symbol. Symbols without
// data are skipped with a log line; a run with no data at all fails.
func (e *Engine) loadSeries(ctx context.Context) (map[string][]domain.Candle, error) {
	limit := 0
	if e.cfg.NumIterations > 0 {
		limit = e.cfg.NumIterations + e.strat.RequiredLookback()
	}

	series := make(map[string][]domain.Candle, len(e.cfg.Symbols))
	for _, sym := range e.cfg.Symbols {
		cs, err := e.candles.Candles(ctx, sym, e.cfg.Interval, limit)
		if err != nil {
			return nil, fmt.Errorf("load candles %s/%s: %w", sym, e.cfg.Interval, err)
		}
		if len(cs) == 0 {
			e.logger.Printf("no candles for %s/%s, skipping symbol", sym, e.cfg.Interval)
			continue
		}
		series[sym] = cs
	}
	if len(series) == 0 {
		return nil, ErrNoCandles
	}
	return series, nil
}
