// Package regime classifies the benchmark index into a market regime used to
// scale position sizing and to filter signal direction.
package regime

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/indicators"
	"github.com/lodestar-quant/lodestar/internal/market"
)

// Regime labels the prevailing market direction.
type Regime string

const (
	Bullish Regime = "BULLISH"
	Bearish Regime = "BEARISH"
	Neutral Regime = "NEUTRAL"
)

// PositionMultiplier scales suggested position sizes by regime.
func (r Regime) PositionMultiplier() float64 {
	switch r {
	case Bullish:
		return 1.2
	case Bearish:
		return 0.8
	default:
		return 1.0
	}
}

// Volatility buckets the benchmark's recent realized volatility.
type Volatility string

const (
	VolLow    Volatility = "LOW"
	VolMedium Volatility = "MEDIUM"
	VolHigh   Volatility = "HIGH"
)

// RiskAppetite is derived from regime and volatility.
type RiskAppetite string

const (
	AppetiteLow    RiskAppetite = "LOW"
	AppetiteMedium RiskAppetite = "MEDIUM"
	AppetiteHigh   RiskAppetite = "HIGH"
)

// MarketContext is the regime snapshot attached to every trade plan.
type MarketContext struct {
	Regime       Regime       `json:"regime" yaml:"regime"`
	Strength     float64      `json:"strength" yaml:"strength"`
	Volatility   Volatility   `json:"volatility" yaml:"volatility"`
	RiskAppetite RiskAppetite `json:"risk_appetite" yaml:"risk_appetite"`
}

// DefaultContext is served when no benchmark history is available.
func DefaultContext() MarketContext {
	return MarketContext{
		Regime:       Bullish,
		Strength:     75,
		Volatility:   VolMedium,
		RiskAppetite: AppetiteMedium,
	}
}

// DetectorConfig holds the classification thresholds.
type DetectorConfig struct {
	Window        int     `yaml:"window"`
	BullThreshold float64 `yaml:"bull_threshold"`
	BearThreshold float64 `yaml:"bear_threshold"`
	HighVol       float64 `yaml:"high_vol"`
	MediumVol     float64 `yaml:"medium_vol"`
}

// DefaultDetectorConfig matches the standard 20-day classification bands.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Window:        20,
		BullThreshold: 0.001,
		BearThreshold: -0.001,
		HighVol:       0.02,
		MediumVol:     0.01,
	}
}

// Detector classifies the benchmark as of a given date. Contexts are memoized
// per date so a backtest pays for each trading day once.
type Detector struct {
	benchmark *market.Series
	config    DetectorConfig

	mu    sync.Mutex
	cache map[time.Time]MarketContext
}

// NewDetector builds a detector over the benchmark series. A nil benchmark is
// allowed and yields DefaultContext for every date.
func NewDetector(benchmark *market.Series, config DetectorConfig) *Detector {
	if config.Window <= 0 {
		config = DefaultDetectorConfig()
	}
	return &Detector{
		benchmark: benchmark,
		config:    config,
		cache:     make(map[time.Time]MarketContext),
	}
}

// Context returns the market context as of the given date, using only
// benchmark bars dated on or before it.
func (d *Detector) Context(asOf time.Time) MarketContext {
	d.mu.Lock()
	if ctx, ok := d.cache[asOf]; ok {
		d.mu.Unlock()
		return ctx
	}
	d.mu.Unlock()

	ctx := d.classify(asOf)

	d.mu.Lock()
	d.cache[asOf] = ctx
	d.mu.Unlock()
	return ctx
}

func (d *Detector) classify(asOf time.Time) MarketContext {
	if d.benchmark == nil {
		return DefaultContext()
	}
	visible := d.benchmark.UpTo(asOf)
	if visible.Len() < d.config.Window+1 {
		log.Debug().
			Time("as_of", asOf).
			Int("bars", visible.Len()).
			Msg("Benchmark history too short, using default market context")
		return DefaultContext()
	}

	closes := visible.Tail(d.config.Window + 1).Closes()
	changes := indicators.PctChange(closes)
	avg := indicators.Mean(changes)
	vol := indicators.StdDev(changes)

	ctx := MarketContext{Regime: Neutral, Strength: 50}
	switch {
	case avg > d.config.BullThreshold:
		ctx.Regime = Bullish
		ctx.Strength = min(100, 50+avg*10000)
	case avg < d.config.BearThreshold:
		ctx.Regime = Bearish
		ctx.Strength = max(0, 50+avg*10000)
	}

	switch {
	case vol > d.config.HighVol:
		ctx.Volatility = VolHigh
	case vol > d.config.MediumVol:
		ctx.Volatility = VolMedium
	default:
		ctx.Volatility = VolLow
	}

	ctx.RiskAppetite = deriveAppetite(ctx.Regime, ctx.Volatility)
	return ctx
}

func deriveAppetite(r Regime, v Volatility) RiskAppetite {
	switch {
	case r == Bullish && v == VolLow:
		return AppetiteHigh
	case r == Bearish || v == VolHigh:
		return AppetiteLow
	default:
		return AppetiteMedium
	}
}
