package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-quant/lodestar/internal/catalyst"
	"github.com/lodestar-quant/lodestar/internal/market"
)

func TestAnalyzeReturnsAllDimensions(t *testing.T) {
	stock := market.NewSeries("600519", risingBars(60, 100, 1.005, 1e6))
	benchmark := market.NewSeries("000300", flatBars(60, 3000, 1e8))

	a := NewAnalyzer(DefaultConfig(), nil)
	set := a.Analyze(stock, benchmark, nil)

	require.NotNil(t, set.Technical)
	require.NotNil(t, set.Capital)
	require.NotNil(t, set.Catalyst)
	require.NotNil(t, set.RelativeStrength)
	assert.Equal(t, "600519", set.Symbol)
	assert.Equal(t, day(59), set.AsOf)
}

func TestAnalyzeShortHistoryDegrades(t *testing.T) {
	stock := market.NewSeries("600519", flatBars(20, 100, 1e6))

	a := NewAnalyzer(DefaultConfig(), nil)
	set := a.Analyze(stock, nil, nil)

	assert.Equal(t, 0.0, set.Technical.Confidence)
	assert.Equal(t, 0.0, set.Capital.Confidence)
	// Catalyst and relative strength still produce a judgment.
	assert.Equal(t, 0.6, set.Catalyst.Confidence)
	assert.Equal(t, 50.0, set.RelativeStrength.Score)
}

func TestCatalystDimensionWithEvents(t *testing.T) {
	feed := catalyst.NewCalendar([]catalyst.Event{
		{Symbol: "600519", Type: "earnings", Date: day(65), Impact: "high"},
		{Symbol: "600519", Type: "dividend", Date: day(70), Impact: "medium"},
	})
	stock := market.NewSeries("600519", flatBars(60, 100, 1e6))

	a := NewAnalyzer(DefaultConfig(), feed)
	p := a.Analyze(stock, nil, nil).Catalyst

	assert.Equal(t, 70.0, p.Score)
	assert.Equal(t, ImpactPositive, p.EventImpact)
	assert.Equal(t, []string{"approaching event: earnings"}, p.Labels)
	assert.Len(t, p.UpcomingEvents, 2)
	assert.Equal(t, 2.0, p.Details["event_count"])
}

func TestCatalystDimensionOutsideHorizon(t *testing.T) {
	// Event 21 days past the last bar, beyond the 14-day horizon.
	feed := catalyst.NewCalendar([]catalyst.Event{
		{Symbol: "600519", Type: "earnings", Date: day(80), Impact: "high"},
	})
	stock := market.NewSeries("600519", flatBars(60, 100, 1e6))

	a := NewAnalyzer(DefaultConfig(), feed)
	p := a.Analyze(stock, nil, nil).Catalyst

	assert.Equal(t, 50.0, p.Score)
	assert.Equal(t, ImpactNeutral, p.EventImpact)
	assert.Equal(t, []string{"no near-term catalyst"}, p.Labels)
	assert.Empty(t, p.UpcomingEvents)
}

func TestCatalystDimensionNilFeed(t *testing.T) {
	stock := market.NewSeries("600519", flatBars(60, 100, 1e6))

	a := NewAnalyzer(DefaultConfig(), nil)
	p := a.Analyze(stock, nil, nil).Catalyst

	assert.Equal(t, 50.0, p.Score)
	assert.Equal(t, ImpactNeutral, p.EventImpact)
}

func TestRelativeStrengthAgainstBenchmark(t *testing.T) {
	benchmark := market.NewSeries("000300", flatBars(60, 3000, 1e8))

	outperformer := flatBars(60, 100, 1e6)
	outperformer[59].Close = 110
	p := analyzeRelativeStrength(market.NewSeries("a", outperformer), benchmark, nil, DefaultConfig())
	assert.Equal(t, 90.0, p.Score)
	assert.Equal(t, RSUp, p.RSTrend)
	assert.InDelta(t, 0.10, p.RSVsMarket, 1e-9)
	assert.Equal(t, []string{"clearly stronger than the market"}, p.Labels)

	laggard := flatBars(60, 100, 1e6)
	laggard[59].Close = 90
	p = analyzeRelativeStrength(market.NewSeries("b", laggard), benchmark, nil, DefaultConfig())
	assert.Equal(t, 30.0, p.Score)
	assert.Equal(t, RSDown, p.RSTrend)

	tracker := flatBars(60, 100, 1e6)
	tracker[59].Close = 101
	p = analyzeRelativeStrength(market.NewSeries("c", tracker), benchmark, nil, DefaultConfig())
	assert.Equal(t, 50.0, p.Score)
	assert.Equal(t, RSNeutral, p.RSTrend)
}

func TestRelativeStrengthMissingBenchmark(t *testing.T) {
	stock := market.NewSeries("600519", flatBars(60, 100, 1e6))

	p := analyzeRelativeStrength(stock, nil, nil, DefaultConfig())
	assert.Equal(t, 50.0, p.Score)
	assert.Equal(t, RSNeutral, p.RSTrend)
	assert.Equal(t, 0.0, p.RSVsMarket)
	assert.Equal(t, 0.8, p.Confidence)
}

func TestRelativeStrengthSectorDetail(t *testing.T) {
	stock := flatBars(60, 100, 1e6)
	stock[59].Close = 110
	sector := market.NewSeries("sector", flatBars(60, 500, 1e7))
	benchmark := market.NewSeries("000300", flatBars(60, 3000, 1e8))

	p := analyzeRelativeStrength(market.NewSeries("a", stock), benchmark, sector, DefaultConfig())
	assert.InDelta(t, 0.10, p.RSVsSector, 1e-9)
	assert.InDelta(t, 0.10, p.Details["rs_vs_sector"], 1e-9)
}

func TestAnalyzeNilStock(t *testing.T) {
	a := NewAnalyzer(DefaultConfig(), nil)
	set := a.Analyze(nil, nil, nil)

	require.NotNil(t, set.Technical)
	assert.Equal(t, 0.0, set.Technical.Confidence)
	assert.Equal(t, "", set.Symbol)
	assert.True(t, set.AsOf.IsZero())
}
