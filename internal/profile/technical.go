package profile

import (
	"math"

	"github.com/lodestar-quant/lodestar/internal/indicators"
	"github.com/lodestar-quant/lodestar/internal/market"
)

const technicalConfidence = 0.8

// analyzeTechnical blends trend structure, effort-vs-result, and the discrete
// spring / sign-of-strength patterns into one technical score.
func analyzeTechnical(series *market.Series, cfg Config) *TechnicalProfile {
	if series.Len() < cfg.MinHistoryBars {
		return neutralTechnical()
	}

	closes := series.Closes()
	volumes := series.Volumes()

	emaShort := last(indicators.EMA(closes, cfg.EMAShortPeriod))
	emaLong := last(indicators.EMA(closes, cfg.EMALongPeriod))
	rsi := last(indicators.RSI(closes, cfg.RSIPeriod))
	atr := last(indicators.ATR(series.Highs(), series.Lows(), closes, cfg.ATRPeriod))
	volumeSMA := last(indicators.SMA(volumes, cfg.VolumeSMAPeriod))

	lastClose := closes[len(closes)-1]
	volumeRatio := 1.0
	if volumeSMA > 0 {
		volumeRatio = volumes[len(volumes)-1] / volumeSMA
	}

	trendScore, trendStatus := scoreTrend(lastClose, emaShort, emaLong)
	effortScore, effortLabel := scoreEffortResult(series.Tail(cfg.EffortWindow), cfg)
	spring := detectSpring(series.Tail(cfg.SpringWindow), cfg)
	strength := detectStrength(series.Tail(cfg.StrengthWindow), cfg)

	score := trendScore*cfg.TrendWeight + effortScore*cfg.EffortWeight
	if strength {
		score += cfg.StrengthScore * cfg.StrengthWeight
	}
	if spring {
		score += cfg.SpringScore * cfg.SpringWeight
	}
	if score > 100 {
		score = 100
	}

	labels := []string{string(trendStatus), effortLabel}
	if spring {
		labels = append(labels, "spring detected")
	}
	if strength {
		labels = append(labels, "sign of strength detected")
	}

	return &TechnicalProfile{
		Profile: Profile{
			Dimension:  DimensionTechnical,
			Score:      score,
			Confidence: technicalConfidence,
			Labels:     labels,
			Details: map[string]float64{
				"ema_10":              emaShort,
				"ema_20":              emaLong,
				"rsi":                 rsi,
				"volume_ratio":        volumeRatio,
				"trend_score":         trendScore,
				"effort_result_score": effortScore,
			},
		},
		IsSpring:         spring,
		IsStrengthSignal: strength,
		ATR:              atr,
		TrendStatus:      trendStatus,
	}
}

// scoreTrend grades the close against the short/long EMA stack. A clean
// bullish stack earns 70 plus a stretch bonus, a bearish stack mirrors it.
func scoreTrend(close, emaShort, emaLong float64) (float64, TrendStatus) {
	switch {
	case emaLong > 0 && close > emaShort && emaShort > emaLong:
		score := 70 + (close-emaLong)/emaLong*1000
		if score > 100 {
			score = 100
		}
		return score, TrendBullish
	case emaLong > 0 && close < emaShort && emaShort < emaLong:
		score := 30 - (emaLong-close)/emaLong*1000
		if score < 0 {
			score = 0
		}
		return score, TrendBearish
	default:
		return 50, TrendNeutral
	}
}

// scoreEffortResult compares recent volume expansion (effort) against price
// follow-through (result) over the trailing window.
func scoreEffortResult(window *market.Series, cfg Config) (float64, string) {
	closes := window.Closes()
	volumes := window.Volumes()
	if len(closes) < cfg.EffortMinBars || closes[0] <= 0 {
		return 50, "volume and price in balance"
	}

	priceChange := (closes[len(closes)-1] - closes[0]) / closes[0]

	recent := volumes
	if len(volumes) > 3 {
		recent = volumes[len(volumes)-3:]
	}
	volumeRatio := 1.0
	if base := indicators.Mean(volumes); base > 0 {
		volumeRatio = indicators.Mean(recent) / base
	}

	switch {
	case volumeRatio > cfg.EffortVolumeHigh && priceChange > cfg.EffortPriceConfirm:
		return 90, "volume confirms the advance"
	case volumeRatio > cfg.EffortVolumeHigh && math.Abs(priceChange) < cfg.EffortPriceStall:
		return 20, "heavy volume without progress"
	case volumeRatio < cfg.EffortVolumeLow && priceChange > cfg.EffortPriceWeak:
		return 30, "advance lacks volume"
	default:
		return 50, "volume and price in balance"
	}
}

// detectSpring looks for a recent undercut of the local low followed by a
// sharp recovery. Undercuts in the first SpringMinAge bars of the lookback are
// stale and do not count.
func detectSpring(window *market.Series, cfg Config) bool {
	if window.Len() < cfg.SpringMinBars {
		return false
	}

	lows := window.Lows()
	if len(lows) > cfg.SpringLookback {
		lows = lows[len(lows)-cfg.SpringLookback:]
	}
	minIdx := 0
	for i, low := range lows {
		if low < lows[minIdx] {
			minIdx = i
		}
	}
	if minIdx < cfg.SpringMinAge {
		return false
	}
	low := lows[minIdx]
	if low <= 0 {
		return false
	}
	rebound := (window.LastClose() - low) / low
	return rebound > cfg.SpringReboundPct
}

// detectStrength fires on a gain over the trailing StrengthBars bars confirmed
// by a volume thrust on the latest bar.
func detectStrength(window *market.Series, cfg Config) bool {
	if window.Len() < cfg.StrengthMinBars {
		return false
	}

	recent := window.Tail(cfg.StrengthBars)
	closes := recent.Closes()
	volumes := recent.Volumes()
	if len(closes) < cfg.StrengthBars || closes[0] <= 0 {
		return false
	}

	gain := (closes[len(closes)-1] - closes[0]) / closes[0]
	base := indicators.Mean(volumes[:len(volumes)-1])
	if base <= 0 {
		return false
	}
	thrust := volumes[len(volumes)-1] / base
	return gain > cfg.StrengthGainPct && thrust > cfg.StrengthVolumeRatio
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
