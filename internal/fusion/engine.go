// Package fusion turns four dimension profiles into a single conviction score
// and, when every quality gate passes, a concrete trade plan with entry zone,
// stop, target, and position size.
package fusion

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/profile"
	"github.com/lodestar-quant/lodestar/internal/regime"
)

// SignalClass ranks admissible plans. S is the high-conviction tier.
type SignalClass string

const (
	ClassS SignalClass = "S"
	ClassA SignalClass = "A"
)

// PriceRange bounds the acceptable entry prices.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price falls inside the range, inclusive.
func (r PriceRange) Contains(price float64) bool {
	return price >= r.Low && price <= r.High
}

// TradePlan is the actionable output of signal fusion. Prices are rounded to
// 2 decimals, conviction to 1, position size to 3.
type TradePlan struct {
	Symbol          string               `json:"symbol"`
	ConvictionScore float64              `json:"conviction_score"`
	Class           SignalClass          `json:"class"`
	Rationale       string               `json:"rationale"`
	EntryZone       PriceRange           `json:"entry_zone"`
	StopLossPrice   float64              `json:"stop_loss_price"`
	TargetPrice     float64              `json:"target_price"`
	RiskReward      float64              `json:"risk_reward"`
	PositionSizePct float64              `json:"position_size_pct"`
	Profiles        *profile.ProfileSet  `json:"profiles,omitempty"`
	MarketContext   regime.MarketContext `json:"market_context"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// Observer receives plan lifecycle events. Implementations must be safe for
// concurrent use; the engine is shared across scan workers.
type Observer interface {
	PlanGenerated(class string)
	PlanRejected(stage string)
}

// Engine fuses profiles under a validated configuration. Stateless after
// construction; safe for concurrent use.
type Engine struct {
	config   Config
	observer Observer
}

// NewEngine validates the configuration up front; a config fault here is
// fatal, never deferred into a run.
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: config}, nil
}

// WithObserver attaches an instrumentation sink. Call before the engine is
// shared; the field is not synchronized.
func (e *Engine) WithObserver(obs Observer) *Engine {
	e.observer = obs
	return e
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.config }

// Conviction is the weighted, confidence-scaled blend of the four dimension
// scores, capped at 100. Dimensions are summed in a fixed order (capital,
// technical, relative strength, catalyst) so the result is reproducible
// bit for bit. A missing dimension contributes the neutral 50 at full weight.
func (e *Engine) Conviction(set *profile.ProfileSet) float64 {
	w := e.config.Weights
	total := weighted(capitalBase(set), w.Capital) +
		weighted(technicalBase(set), w.Technical) +
		weighted(rsBase(set), w.RelativeStrength) +
		weighted(catalystBase(set), w.Catalyst)
	if total > 100 {
		total = 100
	}
	return total
}

func weighted(p *profile.Profile, weight float64) float64 {
	if p == nil {
		return 50 * weight
	}
	return weight * p.Score * p.Confidence
}

// GeneratePlan runs the gate sequence and, if the stock clears every gate and
// the conviction floor, builds the trade plan. A nil return is a rejection,
// not an error.
func (e *Engine) GeneratePlan(symbol string, currentPrice float64, set *profile.ProfileSet, ctx regime.MarketContext) *TradePlan {
	if currentPrice <= 0 || set == nil {
		return nil
	}

	gates := e.EvaluateGates(set)
	if !gates.Passed {
		log.Debug().Str("symbol", symbol).Str("reason", gates.FailReason).Msg("Plan rejected at gates")
		e.notifyRejected(gates.FailedGate())
		return nil
	}

	conviction := e.Conviction(set)
	if conviction < e.config.Thresholds.AClassMin {
		log.Debug().
			Str("symbol", symbol).
			Float64("conviction", conviction).
			Float64("floor", e.config.Thresholds.AClassMin).
			Msg("Plan rejected below conviction floor")
		e.notifyRejected("conviction")
		return nil
	}

	class := ClassA
	if conviction >= e.config.Thresholds.SClassMin {
		class = ClassS
	}

	atr := 0.0
	if set.Technical != nil {
		atr = set.Technical.ATR
	}
	zone, stop, target := e.geometry(currentPrice, atr)
	if stop >= currentPrice || target <= currentPrice {
		log.Debug().Str("symbol", symbol).Msg("Plan rejected on degenerate geometry")
		e.notifyRejected("geometry")
		return nil
	}

	riskReward := 0.0
	if risk := currentPrice - stop; risk > 0 {
		riskReward = round2((target - currentPrice) / risk)
	}

	e.notifyGenerated(string(class))
	return &TradePlan{
		Symbol:          symbol,
		ConvictionScore: round1(conviction),
		Class:           class,
		Rationale:       buildRationale(set),
		EntryZone:       zone,
		StopLossPrice:   stop,
		TargetPrice:     target,
		RiskReward:      riskReward,
		PositionSizePct: e.positionSize(conviction, riskReward, ctx),
		Profiles:        set,
		MarketContext:   ctx,
		GeneratedAt:     time.Now(),
	}
}

// geometry derives the entry zone, stop, and target from ATR when available,
// falling back to percentage bands otherwise. All prices round to 2 decimals.
func (e *Engine) geometry(price, atr float64) (PriceRange, float64, float64) {
	c := e.config
	var zone PriceRange
	var stop float64
	if atr > 0 {
		zone = PriceRange{
			Low:  round2(price - c.EntryZoneATRMult*atr),
			High: round2(price + c.EntryZoneATRMult*atr),
		}
		stop = round2(price - c.StopLossATRMult*atr)
	} else {
		zone = PriceRange{
			Low:  round2(price * (1 - c.EntryZonePct)),
			High: round2(price * (1 + c.EntryZonePct)),
		}
		stop = round2(price * (1 - c.StopLossPct))
	}
	target := round2(price + c.TargetRewardRatio*(price-stop))
	return zone, stop, target
}

// positionSize scales the base allocation by conviction, by the reward:risk
// bonus, and by the market regime, then caps it.
func (e *Engine) positionSize(conviction, riskReward float64, ctx regime.MarketContext) float64 {
	c := e.config
	size := c.BasePositionPct *
		(conviction / 100) *
		math.Min(riskReward/c.TargetRewardRatio, c.MaxRRBonus) *
		ctx.Regime.PositionMultiplier()
	size = round3(size)
	if size > c.MaxPositionPct {
		size = c.MaxPositionPct
	}
	return size
}

func buildRationale(set *profile.ProfileSet) string {
	var parts []string
	if c := capitalBase(set); c != nil && len(c.Labels) > 0 {
		parts = append(parts, "capital: "+c.Labels[0])
	}
	if t := technicalBase(set); t != nil && len(t.Labels) > 0 {
		parts = append(parts, "technical: "+t.Labels[0])
	}
	if set.Technical != nil && set.Technical.IsSpring {
		parts = append(parts, "spring reversal in place")
	}
	if set.Technical != nil && set.Technical.IsStrengthSignal {
		parts = append(parts, "breakout volume confirmed")
	}
	if len(parts) == 0 {
		return "profiles cleared all quality gates"
	}
	return strings.Join(parts, "; ")
}

func (e *Engine) notifyGenerated(class string) {
	if e.observer != nil {
		e.observer.PlanGenerated(class)
	}
}

func (e *Engine) notifyRejected(stage string) {
	if e.observer != nil {
		e.observer.PlanRejected(stage)
	}
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }
func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round3(x float64) float64 { return math.Round(x*1000) / 1000 }

// String implements fmt.Stringer for log-friendly plan summaries.
func (p *TradePlan) String() string {
	return fmt.Sprintf("%s[%s] conviction=%.1f entry=[%.2f,%.2f] stop=%.2f target=%.2f size=%.1f%%",
		p.Symbol, p.Class, p.ConvictionScore, p.EntryZone.Low, p.EntryZone.High,
		p.StopLossPrice, p.TargetPrice, p.PositionSizePct*100)
}
