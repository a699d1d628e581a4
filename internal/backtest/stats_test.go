package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func curveOf(equities ...float64) []EquityPoint {
	curve := make([]EquityPoint, len(equities))
	for i, eq := range equities {
		curve[i] = EquityPoint{Date: day(i), Equity: eq}
	}
	return curve
}

func TestDailyReturns(t *testing.T) {
	returns := DailyReturns(curveOf(100, 110, 99, 108.9))
	require.Len(t, returns, 3)

	assert.InDelta(t, 0.1, returns[0].Return, 1e-12)
	assert.InDelta(t, -0.1, returns[1].Return, 1e-12)
	assert.InDelta(t, 0.1, returns[2].Return, 1e-12)
	assert.Equal(t, day(1), returns[0].Date)
	assert.Equal(t, day(3), returns[2].Date)
}

func TestDailyReturnsShortCurve(t *testing.T) {
	assert.Nil(t, DailyReturns(nil))
	assert.Nil(t, DailyReturns(curveOf(100)))
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 110, trough 99.
	dd := MaxDrawdownPct(curveOf(100, 110, 99, 108.9))
	assert.InDelta(t, -10.0, dd, 1e-9)
}

func TestMaxDrawdownMonotonicRise(t *testing.T) {
	assert.Zero(t, MaxDrawdownPct(curveOf(100, 101, 105, 120)))
	assert.Zero(t, MaxDrawdownPct(nil))
}

func TestSharpeRatioKnownValue(t *testing.T) {
	returns := []ReturnPoint{{Return: 0.01}, {Return: 0.03}}
	// Excess mean 0.019881, sample deviation 0.014142, annualized by sqrt(252).
	assert.InDelta(t, 22.316, SharpeRatio(returns, 0.03), 0.05)
}

func TestSharpeRatioDegenerateInputs(t *testing.T) {
	assert.Zero(t, SharpeRatio(nil, 0.03))
	assert.Zero(t, SharpeRatio([]ReturnPoint{{Return: 0.01}}, 0.03))
	flat := []ReturnPoint{{Return: 0.02}, {Return: 0.02}, {Return: 0.02}}
	assert.Zero(t, SharpeRatio(flat, 0.03))
}

func TestComputeStatsTradeBreakdown(t *testing.T) {
	trades := []Trade{
		{PnL: 300, HoldingDays: 5},
		{PnL: 100, HoldingDays: 10},
		{PnL: -200, HoldingDays: 15},
	}
	stats := ComputeStats(100_000, nil, trades, 0.03)

	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)
	assert.InDelta(t, 200.0, stats.AvgWin, 1e-9)
	assert.InDelta(t, 300.0, stats.MaxWin, 1e-9)
	assert.InDelta(t, -200.0, stats.AvgLoss, 1e-9)
	assert.InDelta(t, -200.0, stats.MaxLoss, 1e-9)
	assert.InDelta(t, 2.0, stats.ProfitFactor, 1e-9)
	assert.InDelta(t, 10.0, stats.AvgHoldingDays, 1e-9)
}

func TestComputeStatsNoLosses(t *testing.T) {
	trades := []Trade{{PnL: 50, HoldingDays: 3}, {PnL: 70, HoldingDays: 4}}
	stats := ComputeStats(100_000, nil, trades, 0.03)

	assert.Equal(t, 100.0, stats.WinRate)
	assert.Zero(t, stats.ProfitFactor)
	assert.Zero(t, stats.AvgLoss)
}

func TestComputeStatsEmptyRun(t *testing.T) {
	stats := ComputeStats(100_000, nil, nil, 0.03)

	assert.Equal(t, 100_000.0, stats.InitialCapital)
	assert.Equal(t, 100_000.0, stats.FinalEquity)
	assert.Zero(t, stats.TotalReturn)
	assert.Zero(t, stats.TotalReturnPct)
	assert.Zero(t, stats.TotalTrades)
	assert.Zero(t, stats.WinRate)
	assert.Zero(t, stats.SharpeRatio)
}

func TestComputeStatsTotalReturn(t *testing.T) {
	curve := curveOf(105_000, 123_456.78)
	stats := ComputeStats(100_000, curve, nil, 0.03)

	assert.InDelta(t, 123_456.78, stats.FinalEquity, 1e-6)
	assert.InDelta(t, 23_456.78, stats.TotalReturn, 1e-6)
	assert.InDelta(t, 23.45678, stats.TotalReturnPct, 1e-6)
}

func TestAnnualizedReturnOverOneYear(t *testing.T) {
	curve := []EquityPoint{
		{Date: day(0), Equity: 100_000},
		{Date: day(365), Equity: 110_000},
	}
	stats := ComputeStats(100_000, curve, nil, 0.03)
	// 10% over 365 days compounds to just above 10% per 365.25-day year.
	assert.InDelta(t, 10.007, stats.AnnualizedPct, 0.01)
}

func TestAnnualizedReturnSinglePoint(t *testing.T) {
	stats := ComputeStats(100_000, curveOf(110_000), nil, 0.03)
	assert.Zero(t, stats.AnnualizedPct)
}
