package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/catalyst"
	"github.com/lodestar-quant/lodestar/internal/fusion"
	"github.com/lodestar-quant/lodestar/internal/market"
	"github.com/lodestar-quant/lodestar/internal/metrics"
	"github.com/lodestar-quant/lodestar/internal/profile"
	"github.com/lodestar-quant/lodestar/internal/regime"
)

var (
	// ErrUnknownSymbol marks an analyze request for a symbol outside the
	// loaded universe.
	ErrUnknownSymbol = errors.New("symbol not in universe")
	// ErrUnknownBaseline marks a comparison request naming a baseline that
	// does not exist.
	ErrUnknownBaseline = errors.New("unknown baseline strategy")
)

// Options wires the orchestrator's collaborators from loaded configuration.
// Benchmark, Sector, Feed, Cache and Metrics are optional.
type Options struct {
	Profile   profile.Config
	Fusion    fusion.Config
	Backtest  backtest.Config
	Detector  regime.DetectorConfig
	Generator GeneratorConfig

	Universe  market.Universe
	Benchmark *market.Series
	Sector    *market.Series
	Feed      catalyst.EventFeed
	Cache     ProfileCache
	Metrics   *metrics.Metrics
}

// Orchestrator owns the full pipeline over one universe: profiling, fusion,
// regime detection, and backtesting.
type Orchestrator struct {
	opts     Options
	analyzer *profile.Analyzer
	engine   *fusion.Engine
	detector *regime.Detector
	core     *Generator
	metrics  *metrics.Metrics
}

// NewOrchestrator validates the fusion and backtest configurations up front
// and assembles the pipeline.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Profile == (profile.Config{}) {
		opts.Profile = profile.DefaultConfig()
	}
	engine, err := fusion.NewEngine(opts.Fusion)
	if err != nil {
		return nil, err
	}
	if err := opts.Backtest.Validate(); err != nil {
		return nil, err
	}
	if opts.Metrics != nil {
		engine.WithObserver(opts.Metrics)
	}

	analyzer := profile.NewAnalyzer(opts.Profile, opts.Feed)
	detector := regime.NewDetector(opts.Benchmark, opts.Detector)
	core := NewGenerator(opts.Generator, analyzer, engine, detector,
		opts.Benchmark, opts.Sector)
	if opts.Cache != nil {
		core.WithCache(opts.Cache)
	}

	return &Orchestrator{
		opts:     opts,
		analyzer: analyzer,
		engine:   engine,
		detector: detector,
		core:     core,
		metrics:  opts.Metrics,
	}, nil
}

// Core exposes the core signal generator, e.g. for a standalone backtest.
func (o *Orchestrator) Core() *Generator { return o.core }

// StockReport is the single-stock verdict the analyze command prints. Gates
// and conviction are reported even when no plan is admitted.
type StockReport struct {
	Symbol     string               `json:"symbol"`
	AsOf       time.Time            `json:"as_of"`
	Context    regime.MarketContext `json:"market_context"`
	Profiles   *profile.ProfileSet  `json:"profiles"`
	Gates      fusion.GateResult    `json:"gates"`
	Conviction float64              `json:"conviction"`
	Plan       *fusion.TradePlan    `json:"plan,omitempty"`
}

// AnalyzeStock profiles one symbol over its full history.
func (o *Orchestrator) AnalyzeStock(symbol string) (*StockReport, error) {
	series, ok := o.opts.Universe[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	asOf := series.LastDate()
	marketCtx := o.detector.Context(asOf)
	candidate := backtest.Candidate{Symbol: symbol, History: series, Price: series.LastClose()}
	set := o.core.profiles(candidate, asOf)

	return &StockReport{
		Symbol:     symbol,
		AsOf:       asOf,
		Context:    marketCtx,
		Profiles:   set,
		Gates:      o.engine.EvaluateGates(set),
		Conviction: o.engine.Conviction(set),
		Plan:       o.engine.GeneratePlan(symbol, candidate.Price, set, marketCtx),
	}, nil
}

// Ranked is one entry of a scan's ranked list.
type Ranked struct {
	Symbol     string             `json:"symbol"`
	Conviction float64            `json:"conviction"`
	Class      fusion.SignalClass `json:"class"`
	Plan       *fusion.TradePlan  `json:"plan"`
}

// ScanResult collects a universe scan: every admitted plan split into the S
// and A tiers, each ranked by conviction descending (symbol ascending on
// ties).
type ScanResult struct {
	AsOf     time.Time            `json:"as_of"`
	Context  regime.MarketContext `json:"market_context"`
	SList    []Ranked             `json:"s_list"`
	AList    []Ranked             `json:"a_list"`
	Scanned  int                  `json:"scanned"`
	Duration time.Duration        `json:"duration"`
}

// BatchAnalyze profiles the whole universe on the worker pool and ranks the
// admitted plans. Individual stocks never abort the scan; cancellation stops
// submission and returns the context error.
func (o *Orchestrator) BatchAnalyze(ctx context.Context) (*ScanResult, error) {
	started := time.Now()
	symbols := o.opts.Universe.Symbols()
	asOf := o.universeAsOf()
	marketCtx := o.detector.Context(asOf)
	if o.metrics != nil {
		defer o.metrics.StartScan(string(marketCtx.Regime)).Stop()
	}

	plans := make([]*fusion.TradePlan, len(symbols))
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.core.config.Workers)

	cancelled := false
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			series := o.opts.Universe[symbol]
			candidate := backtest.Candidate{
				Symbol:  symbol,
				History: series,
				Price:   series.LastClose(),
			}
			set := o.core.profiles(candidate, series.LastDate())
			plans[i] = o.engine.GeneratePlan(symbol, candidate.Price, set, marketCtx)
		}(i, symbol)
	}
	wg.Wait()
	if cancelled {
		return nil, ctx.Err()
	}

	result := &ScanResult{AsOf: asOf, Context: marketCtx, Scanned: len(symbols)}
	for _, plan := range plans {
		if plan == nil {
			continue
		}
		entry := Ranked{
			Symbol:     plan.Symbol,
			Conviction: plan.ConvictionScore,
			Class:      plan.Class,
			Plan:       plan,
		}
		if plan.Class == fusion.ClassS {
			result.SList = append(result.SList, entry)
		} else {
			result.AList = append(result.AList, entry)
		}
	}
	sortRanked(result.SList)
	sortRanked(result.AList)
	result.Duration = time.Since(started)

	log.Info().
		Int("scanned", result.Scanned).
		Int("s_class", len(result.SList)).
		Int("a_class", len(result.AList)).
		Str("regime", string(marketCtx.Regime)).
		Dur("elapsed", result.Duration).
		Msg("Universe scan finished")
	return result, nil
}

// universeAsOf is the latest bar date across the universe, falling back to
// the benchmark when the universe is empty.
func (o *Orchestrator) universeAsOf() time.Time {
	var asOf time.Time
	for _, symbol := range o.opts.Universe.Symbols() {
		if last := o.opts.Universe[symbol].LastDate(); last.After(asOf) {
			asOf = last
		}
	}
	if asOf.IsZero() && o.opts.Benchmark != nil {
		asOf = o.opts.Benchmark.LastDate()
	}
	return asOf
}

func sortRanked(list []Ranked) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Conviction != list[j].Conviction {
			return list[i].Conviction > list[j].Conviction
		}
		return list[i].Symbol < list[j].Symbol
	})
}

// Comparison pairs each executed strategy with its backtest result. One
// strategy failing never aborts the rest; failures are recorded by name.
type Comparison struct {
	Order    []string                    `json:"order"`
	Results  map[string]*backtest.Result `json:"results"`
	Failures map[string]string           `json:"failures,omitempty"`
}

// RunBacktest replays the core strategy plus the named baselines over the
// same window. Pass nil baselines to run every known one; pass an empty
// non-nil slice to run the core alone.
func (o *Orchestrator) RunBacktest(ctx context.Context, start, end time.Time,
	baselines []string, progress backtest.ProgressFn) (*Comparison, error) {
	gens := []backtest.SignalGenerator{o.core}
	if baselines == nil {
		gens = append(gens, Baselines()...)
	} else {
		for _, name := range baselines {
			gen, ok := BaselineByName(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownBaseline, name)
			}
			gens = append(gens, gen)
		}
	}

	engine, err := backtest.NewEngine(o.opts.Backtest, o.opts.Universe)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		engine.OnProgress(progress)
	}

	comparison := &Comparison{
		Results:  make(map[string]*backtest.Result),
		Failures: make(map[string]string),
	}
	for _, gen := range gens {
		comparison.Order = append(comparison.Order, gen.Name())

		var timer *metrics.RunTimer
		if o.metrics != nil {
			timer = o.metrics.StartRun(gen.Name())
		}
		result, err := engine.Run(ctx, gen, start, end)
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return comparison, err
			}
			log.Error().Err(err).Str("strategy", gen.Name()).Msg("Backtest failed")
			comparison.Failures[gen.Name()] = err.Error()
			continue
		}
		if o.metrics != nil {
			for _, trade := range result.Trades {
				o.metrics.TradeClosed(string(trade.ExitReason))
			}
		}
		comparison.Results[gen.Name()] = result
	}
	return comparison, nil
}

// Summary renders a fixed-width comparison table over the executed
// strategies, in execution order.
func (c *Comparison) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %14s %9s %9s %8s %8s %7s %7s\n",
		"STRATEGY", "FINAL EQUITY", "RETURN%", "ANNUAL%", "MAXDD%", "SHARPE", "TRADES", "WIN%")
	for _, name := range c.Order {
		if msg, failed := c.Failures[name]; failed {
			fmt.Fprintf(&b, "%-16s failed: %s\n", name, msg)
			continue
		}
		result, ok := c.Results[name]
		if !ok {
			continue
		}
		s := result.Stats
		fmt.Fprintf(&b, "%-16s %14.2f %9.2f %9.2f %8.2f %8.2f %7d %7.1f\n",
			name, s.FinalEquity, s.TotalReturnPct, s.AnnualizedPct,
			s.MaxDrawdownPct, s.SharpeRatio, s.TotalTrades, s.WinRate)
	}
	return b.String()
}
