package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/cache"
	"github.com/lodestar-quant/lodestar/internal/catalyst"
	"github.com/lodestar-quant/lodestar/internal/config"
	"github.com/lodestar-quant/lodestar/internal/market"
	"github.com/lodestar-quant/lodestar/internal/metrics"
	"github.com/lodestar-quant/lodestar/internal/persistence/postgres"
	"github.com/lodestar-quant/lodestar/internal/strategy"
)

// app bundles the wired pipeline for one command invocation.
type app struct {
	config   *config.Config
	universe market.Universe
	orch     *strategy.Orchestrator
	metrics  *metrics.Metrics
	store    *postgres.Store
	cache    *cache.ProfileStore
}

// newApp loads configuration and bar data and assembles the orchestrator.
// needDB gates the postgres connection: read-only commands skip it even
// when persistence is enabled.
func newApp(ctx context.Context, needDB bool) (*app, error) {
	cfg, err := config.LoadOrDefault(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Err(); err != nil {
		return nil, err
	}

	universe, err := market.LoadDir(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	// Index series provide context; they are not candidates.
	var benchmark, sector *market.Series
	if cfg.Data.BenchmarkSymbol != "" {
		benchmark = universe[cfg.Data.BenchmarkSymbol]
		if benchmark == nil {
			log.Warn().Str("symbol", cfg.Data.BenchmarkSymbol).
				Msg("Benchmark history missing, regime defaults to bullish")
		}
		delete(universe, cfg.Data.BenchmarkSymbol)
	}
	if cfg.Data.SectorSymbol != "" {
		sector = universe[cfg.Data.SectorSymbol]
		if sector == nil {
			log.Warn().Str("symbol", cfg.Data.SectorSymbol).
				Msg("Sector history missing, sector strength falls back to market")
		}
		delete(universe, cfg.Data.SectorSymbol)
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("universe in %s holds only index series", cfg.Data.Dir)
	}

	feed, err := buildFeed(ctx, cfg.Catalyst)
	if err != nil {
		return nil, err
	}

	a := &app{config: cfg, universe: universe, metrics: metrics.New()}

	if cfg.Cache.Enabled {
		store := cache.New(cfg.Cache).WithRecorder(a.metrics)
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Cache.OpTimeout)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.Addr).
				Msg("Profile cache unreachable, lookups degrade to misses")
		}
		a.cache = store
	}

	if needDB && cfg.Database.Enabled {
		store, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			a.Close()
			return nil, err
		}
		a.store = store
	}

	opts := strategy.Options{
		Profile:   cfg.Profile,
		Fusion:    cfg.Fusion,
		Backtest:  cfg.Backtest,
		Detector:  cfg.Regime,
		Generator: cfg.Strategy,
		Universe:  universe,
		Benchmark: benchmark,
		Sector:    sector,
		Feed:      feed,
		Metrics:   a.metrics,
	}
	if a.cache != nil {
		opts.Cache = a.cache
	}

	orch, err := strategy.NewOrchestrator(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch
	return a, nil
}

// buildFeed selects the event source. A failed provider refresh degrades the
// catalyst dimension to neutral instead of aborting the command.
func buildFeed(ctx context.Context, cfg config.CatalystConfig) (catalyst.EventFeed, error) {
	if cfg.UseProvider {
		feed := catalyst.NewHTTPFeed(cfg.Provider)
		if err := feed.Refresh(ctx); err != nil {
			log.Warn().Err(err).Str("url", cfg.Provider.URL).
				Msg("Event feed refresh failed, catalyst scores stay neutral")
		}
		return feed, nil
	}
	if cfg.CalendarPath != "" {
		cal, err := catalyst.LoadCalendar(cfg.CalendarPath)
		if err != nil {
			return nil, err
		}
		log.Info().Int("events", cal.Size()).Str("path", cfg.CalendarPath).
			Msg("Event calendar loaded")
		return cal, nil
	}
	return nil, nil
}

// span returns the earliest and latest bar dates across the universe.
func (a *app) span() (time.Time, time.Time) {
	var first, last time.Time
	for _, series := range a.universe {
		if series.Len() == 0 {
			continue
		}
		if f := series.Bars[0].Date; first.IsZero() || f.Before(first) {
			first = f
		}
		if l := series.LastDate(); last.IsZero() || l.After(last) {
			last = l
		}
	}
	return first, last
}

// Close releases external connections. Safe on a partially built app.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Cache close failed")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Database close failed")
		}
	}
}
