// Package profile scores a stock along four independent dimensions: technical
// structure, capital flow, scheduled catalysts, and relative strength. Each
// dimension yields a bounded 0-100 score with a confidence multiplier; callers
// fuse them downstream, so a weak dimension lowers conviction instead of
// failing the analysis.
package profile

import (
	"time"

	"github.com/lodestar-quant/lodestar/internal/catalyst"
)

// Dimension identifies one of the four profiling axes.
type Dimension string

const (
	DimensionTechnical        Dimension = "technical"
	DimensionCapital          Dimension = "capital"
	DimensionCatalyst         Dimension = "catalyst"
	DimensionRelativeStrength Dimension = "relative_strength"
)

// Profile is the shared shape of every dimension score. Score is bounded to
// [0,100]; Confidence is 0 when the dimension had too little history to judge.
type Profile struct {
	Dimension  Dimension          `json:"dimension"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Labels     []string           `json:"labels"`
	Details    map[string]float64 `json:"details,omitempty"`
}

// TrendStatus classifies price against its moving-average stack.
type TrendStatus string

const (
	TrendBullish TrendStatus = "BULLISH"
	TrendBearish TrendStatus = "BEARISH"
	TrendNeutral TrendStatus = "NEUTRAL"
)

// TechnicalProfile carries the pattern flags alongside the blended score.
type TechnicalProfile struct {
	Profile
	IsSpring         bool        `json:"is_spring"`
	IsStrengthSignal bool        `json:"is_strength_signal"`
	ATR              float64     `json:"atr"`
	TrendStatus      TrendStatus `json:"trend_status"`
}

// Intensity tiers the capital-flow reading.
type Intensity string

const (
	IntensityStrong   Intensity = "STRONG"
	IntensityModerate Intensity = "MODERATE"
	IntensityWeak     Intensity = "WEAK"
	IntensityOutflow  Intensity = "OUTFLOW"
)

// CapitalProfile reports the estimated main-force positioning.
type CapitalProfile struct {
	Profile
	NetInflowRatio     float64   `json:"net_inflow_ratio"`
	ConsecutiveInflow  int       `json:"consecutive_inflow_days"`
	MainForceIntensity Intensity `json:"main_force_intensity"`
}

// EventImpact classifies the near-term catalyst picture.
type EventImpact string

const (
	ImpactPositive EventImpact = "POSITIVE"
	ImpactNeutral  EventImpact = "NEUTRAL"
	ImpactNegative EventImpact = "NEGATIVE"
)

// CatalystProfile lists the events inside the look-ahead horizon.
type CatalystProfile struct {
	Profile
	UpcomingEvents []catalyst.Event `json:"upcoming_events,omitempty"`
	EventImpact    EventImpact      `json:"event_impact"`
}

// RSTrend classifies the stock's return gap against its benchmark.
type RSTrend string

const (
	RSUp      RSTrend = "UP"
	RSDown    RSTrend = "DOWN"
	RSNeutral RSTrend = "NEUTRAL"
)

// RelativeStrengthProfile compares trailing returns against market and sector.
type RelativeStrengthProfile struct {
	Profile
	RSVsMarket float64 `json:"rs_vs_market"`
	RSVsSector float64 `json:"rs_vs_sector"`
	RSTrend    RSTrend `json:"rs_trend"`
}

// ProfileSet bundles the four dimension scores for one symbol at one date.
type ProfileSet struct {
	Symbol           string                   `json:"symbol"`
	AsOf             time.Time                `json:"as_of"`
	Technical        *TechnicalProfile        `json:"technical"`
	Capital          *CapitalProfile          `json:"capital"`
	Catalyst         *CatalystProfile         `json:"catalyst"`
	RelativeStrength *RelativeStrengthProfile `json:"relative_strength"`
}

const insufficientData = "insufficient data"

func neutralProfile(dim Dimension, label string) Profile {
	return Profile{
		Dimension:  dim,
		Score:      50,
		Confidence: 0,
		Labels:     []string{label},
		Details:    map[string]float64{},
	}
}

func neutralTechnical() *TechnicalProfile {
	return &TechnicalProfile{
		Profile:     neutralProfile(DimensionTechnical, insufficientData),
		TrendStatus: TrendNeutral,
	}
}

func neutralCapital() *CapitalProfile {
	return &CapitalProfile{
		Profile:            neutralProfile(DimensionCapital, insufficientData),
		MainForceIntensity: IntensityWeak,
	}
}
