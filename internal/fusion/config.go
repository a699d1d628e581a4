package fusion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidConfig marks configuration problems caught at engine
// construction. Nothing config-related is deferred into a run.
var ErrInvalidConfig = errors.New("invalid fusion config")

// Weights are the dimension contributions to conviction. They are a struct,
// not a map, so summation order is fixed and conviction stays bit-for-bit
// reproducible across runs.
type Weights struct {
	Capital          float64 `yaml:"capital"`
	Technical        float64 `yaml:"technical"`
	RelativeStrength float64 `yaml:"relative_strength"`
	Catalyst         float64 `yaml:"catalyst"`
}

// Sum adds the weights in declaration order.
func (w Weights) Sum() float64 {
	return w.Capital + w.Technical + w.RelativeStrength + w.Catalyst
}

// Thresholds hold the quality-gate floors, applied to raw dimension scores,
// and the class boundaries, applied to conviction. Conviction discounts each
// score by its confidence, so the class bounds sit below the gate floors.
type Thresholds struct {
	CapitalMin   float64 `yaml:"capital_min"`
	TechnicalMin float64 `yaml:"technical_min"`
	RSMin        float64 `yaml:"rs_min"`
	SClassMin    float64 `yaml:"s_class_min"`
	AClassMin    float64 `yaml:"a_class_min"`
}

// Config drives gate evaluation, conviction weighting, and trade-plan
// geometry.
type Config struct {
	Weights    Weights    `yaml:"weights"`
	Thresholds Thresholds `yaml:"thresholds"`

	// Geometry multipliers. The pct fields are the fallbacks used when no
	// usable ATR is available.
	EntryZoneATRMult  float64 `yaml:"entry_zone_atr_mult"`
	StopLossATRMult   float64 `yaml:"stop_loss_atr_mult"`
	TargetRewardRatio float64 `yaml:"target_reward_ratio"`
	EntryZonePct      float64 `yaml:"entry_zone_pct"`
	StopLossPct       float64 `yaml:"stop_loss_pct"`

	// Position sizing.
	BasePositionPct float64 `yaml:"base_position_pct"`
	MaxPositionPct  float64 `yaml:"max_position_pct"`
	MaxRRBonus      float64 `yaml:"max_rr_bonus"`
}

// DefaultConfig returns the standard fusion parameters: capital-led weights,
// raw-score gate floors, and conviction-domain class bounds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Capital:          0.45,
			Technical:        0.35,
			RelativeStrength: 0.15,
			Catalyst:         0.05,
		},
		Thresholds: Thresholds{
			CapitalMin:   80,
			TechnicalMin: 75,
			RSMin:        60,
			SClassMin:    68,
			AClassMin:    60,
		},
		EntryZoneATRMult:  0.5,
		StopLossATRMult:   2.0,
		TargetRewardRatio: 2.0,
		EntryZonePct:      0.02,
		StopLossPct:       0.05,
		BasePositionPct:   0.10,
		MaxPositionPct:    0.25,
		MaxRRBonus:        1.5,
	}
}

// Validate reports every configuration fault, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if sum := c.Weights.Sum(); math.Abs(sum-1.0) > 1e-6 {
		add("weights must sum to 1.0, got %.6f", sum)
	}
	checkWeight := func(name string, w float64) {
		if w < 0 {
			add("weight %s is negative", name)
		}
	}
	checkWeight("capital", c.Weights.Capital)
	checkWeight("technical", c.Weights.Technical)
	checkWeight("relative_strength", c.Weights.RelativeStrength)
	checkWeight("catalyst", c.Weights.Catalyst)

	checkThreshold := func(name string, th float64) {
		if th < 0 || th > 100 {
			add("threshold %s outside [0,100]", name)
		}
	}
	checkThreshold("capital_min", c.Thresholds.CapitalMin)
	checkThreshold("technical_min", c.Thresholds.TechnicalMin)
	checkThreshold("rs_min", c.Thresholds.RSMin)
	checkThreshold("s_class_min", c.Thresholds.SClassMin)
	checkThreshold("a_class_min", c.Thresholds.AClassMin)
	if c.Thresholds.SClassMin < c.Thresholds.AClassMin {
		add("s_class_min below a_class_min")
	}

	checkPositive := func(name string, v float64) {
		if v <= 0 {
			add("%s must be positive", name)
		}
	}
	checkPositive("entry_zone_atr_mult", c.EntryZoneATRMult)
	checkPositive("stop_loss_atr_mult", c.StopLossATRMult)
	checkPositive("target_reward_ratio", c.TargetRewardRatio)
	checkPositive("entry_zone_pct", c.EntryZonePct)
	checkPositive("stop_loss_pct", c.StopLossPct)
	checkPositive("base_position_pct", c.BasePositionPct)
	checkPositive("max_position_pct", c.MaxPositionPct)
	checkPositive("max_rr_bonus", c.MaxRRBonus)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
