package profile

import (
	"github.com/lodestar-quant/lodestar/internal/market"
)

const relativeStrengthConfidence = 0.8

// analyzeRelativeStrength compares the stock's trailing return against the
// benchmark's. The sector gap is informational only and never moves the score.
func analyzeRelativeStrength(stock, benchmark, sector *market.Series, cfg Config) *RelativeStrengthProfile {
	rsMarket := returnGap(stock, benchmark, cfg.RSWindow)
	rsSector := returnGap(stock, sector, cfg.RSWindow)

	var (
		score float64
		trend RSTrend
		label string
	)
	switch {
	case rsMarket > cfg.RSGap:
		score, trend, label = 90, RSUp, "clearly stronger than the market"
	case rsMarket < -cfg.RSGap:
		score, trend, label = 30, RSDown, "clearly weaker than the market"
	default:
		score, trend, label = 50, RSNeutral, "tracking the market"
	}

	return &RelativeStrengthProfile{
		Profile: Profile{
			Dimension:  DimensionRelativeStrength,
			Score:      score,
			Confidence: relativeStrengthConfidence,
			Labels:     []string{label},
			Details: map[string]float64{
				"rs_vs_market": rsMarket,
				"rs_vs_sector": rsSector,
			},
		},
		RSVsMarket: rsMarket,
		RSVsSector: rsSector,
		RSTrend:    trend,
	}
}

// returnGap is the stock's trailing window return minus the reference's.
// Either side short of the window yields 0, which reads as neutral.
func returnGap(stock, reference *market.Series, window int) float64 {
	stockRet, ok := trailingReturn(stock, window)
	if !ok {
		return 0
	}
	refRet, ok := trailingReturn(reference, window)
	if !ok {
		return 0
	}
	return stockRet - refRet
}

func trailingReturn(s *market.Series, window int) (float64, bool) {
	if s.Len() < window {
		return 0, false
	}
	closes := s.Tail(window).Closes()
	first := closes[0]
	if first <= 0 {
		return 0, false
	}
	return (closes[len(closes)-1] - first) / first, true
}
