// Package strategy wires profiling, fusion, and regime detection into signal
// generators the backtest engine can replay, and exposes the orchestration
// entry points the CLI drives: single-stock analysis, universe scans, and
// strategy-comparison backtests.
package strategy

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/fusion"
	"github.com/lodestar-quant/lodestar/internal/market"
	"github.com/lodestar-quant/lodestar/internal/profile"
	"github.com/lodestar-quant/lodestar/internal/regime"
)

// ProfileCache is consulted before profiling a candidate and fed after.
// Implementations absorb their own transport failures: a broken cache reads
// as a miss, never as an error.
type ProfileCache interface {
	Fetch(symbol string, date time.Time) (*profile.ProfileSet, bool)
	Store(symbol string, date time.Time, set *profile.ProfileSet)
}

// GeneratorConfig tunes the core signal generator.
type GeneratorConfig struct {
	Name             string `yaml:"name"`
	MaxSignalsPerDay int    `yaml:"max_signals_per_day"`
	Workers          int    `yaml:"workers"`
	BullishOnly      bool   `yaml:"bullish_only"`
}

// DefaultGeneratorConfig matches the reference scan settings: ten signals a
// day, ten profiling workers, long entries only under a bullish regime.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Name:             "lodestar_core",
		MaxSignalsPerDay: 10,
		Workers:          10,
		BullishOnly:      true,
	}
}

func (c GeneratorConfig) normalized() GeneratorConfig {
	def := DefaultGeneratorConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.MaxSignalsPerDay <= 0 {
		c.MaxSignalsPerDay = def.MaxSignalsPerDay
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	return c
}

// Generator is the core four-dimension signal generator. It implements
// backtest.SignalGenerator.
type Generator struct {
	config    GeneratorConfig
	analyzer  *profile.Analyzer
	engine    *fusion.Engine
	detector  *regime.Detector
	benchmark *market.Series
	sector    *market.Series
	cache     ProfileCache
}

// NewGenerator assembles the core generator. benchmark and sector may be nil:
// the detector then serves the default context and relative strength reads
// neutral.
func NewGenerator(config GeneratorConfig, analyzer *profile.Analyzer, engine *fusion.Engine,
	detector *regime.Detector, benchmark, sector *market.Series) *Generator {
	return &Generator{
		config:    config.normalized(),
		analyzer:  analyzer,
		engine:    engine,
		detector:  detector,
		benchmark: benchmark,
		sector:    sector,
	}
}

// WithCache attaches a profile cache and returns the generator.
func (g *Generator) WithCache(cache ProfileCache) *Generator {
	g.cache = cache
	return g
}

// Name implements backtest.SignalGenerator.
func (g *Generator) Name() string { return g.config.Name }

// Signals profiles every candidate on a bounded worker pool, fuses plans, and
// returns the best by conviction. Determinism: candidates are taken from the
// sorted symbol list, results reassemble positionally, and the final ranking
// breaks conviction ties by symbol.
func (g *Generator) Signals(snapshot backtest.DaySnapshot) []*fusion.TradePlan {
	marketCtx := g.detector.Context(snapshot.Date)
	if g.config.BullishOnly && marketCtx.Regime != regime.Bullish {
		log.Debug().
			Str("regime", string(marketCtx.Regime)).
			Time("date", snapshot.Date).
			Msg("Signals suppressed outside bullish regime")
		return nil
	}

	symbols := snapshot.Symbols()
	plans := make([]*fusion.TradePlan, len(symbols))

	var wg sync.WaitGroup
	sem := make(chan struct{}, g.config.Workers)
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, candidate backtest.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			plans[i] = g.planFor(candidate, snapshot.Date, marketCtx)
		}(i, snapshot.Candidates[symbol])
	}
	wg.Wait()

	kept := plans[:0]
	for _, plan := range plans {
		if plan != nil {
			kept = append(kept, plan)
		}
	}
	sortByConviction(kept)
	if len(kept) > g.config.MaxSignalsPerDay {
		kept = kept[:g.config.MaxSignalsPerDay]
	}
	return kept
}

func (g *Generator) planFor(candidate backtest.Candidate, date time.Time,
	marketCtx regime.MarketContext) *fusion.TradePlan {
	set := g.profiles(candidate, date)
	return g.engine.GeneratePlan(candidate.Symbol, candidate.Price, set, marketCtx)
}

// profiles runs the analyzer behind the cache, when one is attached.
func (g *Generator) profiles(candidate backtest.Candidate, date time.Time) *profile.ProfileSet {
	if g.cache != nil {
		if set, ok := g.cache.Fetch(candidate.Symbol, date); ok {
			return set
		}
	}
	set := g.analyzer.Analyze(candidate.History, upTo(g.benchmark, date), upTo(g.sector, date))
	if g.cache != nil && set != nil {
		g.cache.Store(candidate.Symbol, date, set)
	}
	return set
}

func upTo(series *market.Series, date time.Time) *market.Series {
	if series == nil {
		return nil
	}
	return series.UpTo(date)
}

// sortByConviction orders plans by conviction descending, symbol ascending on
// ties.
func sortByConviction(plans []*fusion.TradePlan) {
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].ConvictionScore != plans[j].ConvictionScore {
			return plans[i].ConvictionScore > plans[j].ConvictionScore
		}
		return plans[i].Symbol < plans[j].Symbol
	})
}
