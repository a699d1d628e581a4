package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-quant/lodestar/internal/market"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// flatBars builds n identical bars, ready for targeted mutation.
func flatBars(n int, close, volume float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Date: day(i), Open: close, High: close, Low: close,
			Close: close, Volume: volume,
		}
	}
	return bars
}

// risingBars compounds the close by factor each bar.
func risingBars(n int, start, factor, volume float64) []market.Bar {
	bars := make([]market.Bar, n)
	price := start
	for i := range bars {
		price *= factor
		bars[i] = market.Bar{
			Date: day(i), Open: price, High: price * 1.01, Low: price * 0.99,
			Close: price, Volume: volume,
		}
	}
	return bars
}

func TestTechnicalInsufficientHistory(t *testing.T) {
	series := market.NewSeries("600519", flatBars(30, 100, 1e6))
	p := analyzeTechnical(series, DefaultConfig())

	assert.Equal(t, 50.0, p.Score)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, []string{"insufficient data"}, p.Labels)
	assert.Equal(t, TrendNeutral, p.TrendStatus)
	assert.False(t, p.IsSpring)
	assert.False(t, p.IsStrengthSignal)
}

func TestScoreTrend(t *testing.T) {
	tests := []struct {
		name   string
		close  float64
		short  float64
		long   float64
		score  float64
		status TrendStatus
	}{
		{"bullish stack capped", 110, 105, 100, 100, TrendBullish},
		{"bullish stack modest", 101, 100.5, 100, 80, TrendBullish},
		{"bearish stack floored", 90, 95, 100, 0, TrendBearish},
		{"bearish stack modest", 99, 99.5, 100, 20, TrendBearish},
		{"mixed stack", 100, 101, 99, 50, TrendNeutral},
		{"zero long ema", 100, 101, 0, 50, TrendNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, status := scoreTrend(tt.close, tt.short, tt.long)
			assert.InDelta(t, tt.score, score, 1e-9)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestScoreEffortResult(t *testing.T) {
	cfg := DefaultConfig()

	build := func(priceChange float64, lastVolumes float64) *market.Series {
		bars := flatBars(20, 100, 100)
		for i := 17; i < 20; i++ {
			bars[i].Volume = lastVolumes
		}
		bars[19].Close = 100 * (1 + priceChange)
		return market.NewSeries("x", bars)
	}

	score, label := scoreEffortResult(build(0.05, 300), cfg)
	assert.Equal(t, 90.0, score)
	assert.Equal(t, "volume confirms the advance", label)

	score, label = scoreEffortResult(build(0, 300), cfg)
	assert.Equal(t, 20.0, score)
	assert.Equal(t, "heavy volume without progress", label)

	// Shrinking volume against a rising close: advance lacks effort.
	bars := flatBars(20, 100, 150)
	for i := 17; i < 20; i++ {
		bars[i].Volume = 50
	}
	bars[19].Close = 103
	score, label = scoreEffortResult(market.NewSeries("x", bars), cfg)
	assert.Equal(t, 30.0, score)
	assert.Equal(t, "advance lacks volume", label)

	score, label = scoreEffortResult(build(0.005, 100), cfg)
	assert.Equal(t, 50.0, score)
	assert.Equal(t, "volume and price in balance", label)

	// Too few bars for a judgment.
	score, _ = scoreEffortResult(market.NewSeries("x", flatBars(3, 100, 100)), cfg)
	assert.Equal(t, 50.0, score)
}

func TestDetectSpring(t *testing.T) {
	cfg := DefaultConfig()

	// Undercut 8 bars into the 15-bar lookback with a 10% recovery.
	bars := flatBars(30, 10, 1e6)
	bars[22].Low = 9.0
	bars[29].Close = 9.9
	assert.True(t, detectSpring(market.NewSeries("x", bars), cfg))

	// Same undercut but the recovery falls short of 5%.
	bars = flatBars(30, 10, 1e6)
	bars[22].Low = 9.0
	bars[29].Close = 9.4
	assert.False(t, detectSpring(market.NewSeries("x", bars), cfg))

	// Undercut sits in the stale band at the start of the lookback.
	bars = flatBars(30, 10, 1e6)
	bars[17].Low = 9.0
	bars[29].Close = 9.9
	assert.False(t, detectSpring(market.NewSeries("x", bars), cfg))

	// Not enough bars to judge.
	assert.False(t, detectSpring(market.NewSeries("x", flatBars(15, 10, 1e6)), cfg))
}

func TestDetectStrength(t *testing.T) {
	cfg := DefaultConfig()

	// +4% over the last five bars with a 2x volume thrust on the latest.
	bars := flatBars(20, 100, 100)
	bars[15].Close = 100
	bars[19].Close = 104
	bars[19].Volume = 200
	assert.True(t, detectStrength(market.NewSeries("x", bars), cfg))

	// Gain too small.
	bars = flatBars(20, 100, 100)
	bars[19].Close = 102
	bars[19].Volume = 200
	assert.False(t, detectStrength(market.NewSeries("x", bars), cfg))

	// No volume thrust.
	bars = flatBars(20, 100, 100)
	bars[19].Close = 104
	bars[19].Volume = 120
	assert.False(t, detectStrength(market.NewSeries("x", bars), cfg))

	assert.False(t, detectStrength(market.NewSeries("x", flatBars(5, 100, 100)), cfg))
}

func TestAnalyzeTechnicalBullishSeries(t *testing.T) {
	series := market.NewSeries("600519", risingBars(60, 100, 1.005, 1e6))
	p := analyzeTechnical(series, DefaultConfig())

	assert.Equal(t, TrendBullish, p.TrendStatus)
	assert.Equal(t, "BULLISH", p.Labels[0])
	assert.Equal(t, 0.8, p.Confidence)
	assert.Greater(t, p.ATR, 0.0)
	assert.GreaterOrEqual(t, p.Score, 0.0)
	assert.LessOrEqual(t, p.Score, 100.0)

	for _, key := range []string{"ema_10", "ema_20", "rsi", "volume_ratio", "trend_score", "effort_result_score"} {
		_, ok := p.Details[key]
		require.True(t, ok, "missing detail %s", key)
	}
	assert.Greater(t, p.Details["trend_score"], 50.0)
}

func TestAnalyzeTechnicalAllSignals(t *testing.T) {
	bars := risingBars(60, 100, 1.01, 100)
	// Spring: undercut inside the lookback, last close far above it.
	bars[52].Low = bars[52].Low * 0.5
	// Strength: volume thrust on the final bar.
	bars[59].Volume = 500
	p := analyzeTechnical(market.NewSeries("x", bars), DefaultConfig())

	assert.True(t, p.IsSpring)
	assert.True(t, p.IsStrengthSignal)
	assert.Contains(t, p.Labels, "spring detected")
	assert.Contains(t, p.Labels, "sign of strength detected")

	// Capped trend 100x0.4, volume-confirmed advance 90x0.3, both bonuses.
	assert.InDelta(t, 95.0, p.Score, 1e-9)
	assert.LessOrEqual(t, p.Score, 100.0)
}
