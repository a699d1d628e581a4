package profile

import (
	"github.com/lodestar-quant/lodestar/internal/indicators"
	"github.com/lodestar-quant/lodestar/internal/market"
)

const capitalConfidence = 0.7

// analyzeCapital estimates main-force positioning from the co-movement of
// daily returns and volume changes over the trailing flow window.
func analyzeCapital(series *market.Series, cfg Config) *CapitalProfile {
	if series.Len() < cfg.MinHistoryBars {
		return neutralCapital()
	}

	window := series.Tail(cfg.FlowWindow)
	priceChanges := indicators.PctChange(window.Closes())
	volumeChanges := indicators.PctChange(window.Volumes())

	products := make([]float64, len(priceChanges))
	total := 0.0
	for i := range priceChanges {
		products[i] = priceChanges[i] * volumeChanges[i]
		total += products[i]
	}
	ratio := indicators.Mean(products)

	streak := 0
	for i := len(priceChanges) - 1; i >= 0; i-- {
		if priceChanges[i] <= 0 || volumeChanges[i] <= 0 {
			break
		}
		streak++
	}

	var (
		score     float64
		intensity Intensity
		label     string
	)
	switch {
	case ratio > cfg.StrongRatio && streak >= cfg.StrongStreak:
		score, intensity, label = 95, IntensityStrong, "main force deeply engaged"
	case ratio > cfg.ModerateRatio:
		score, intensity, label = 80, IntensityModerate, "significant inflow"
	case ratio < cfg.OutflowRatio:
		score, intensity, label = 30, IntensityOutflow, "capital leaving"
	default:
		score, intensity, label = 50, IntensityWeak, "flows unremarkable"
	}

	return &CapitalProfile{
		Profile: Profile{
			Dimension:  DimensionCapital,
			Score:      score,
			Confidence: capitalConfidence,
			Labels:     []string{label},
			Details: map[string]float64{
				"daily_ratio":      ratio,
				"consecutive_days": float64(streak),
				"total_inflow":     total,
			},
		},
		NetInflowRatio:     ratio,
		ConsecutiveInflow:  streak,
		MainForceIntensity: intensity,
	}
}
