package backtest

import (
	"math"

	"github.com/lodestar-quant/lodestar/internal/indicators"
)

// Stats summarizes a finished run. Every figure is a pure function of the
// equity curve and closed trades, so recomputation is idempotent.
type Stats struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	TotalReturnPct float64 `json:"total_return_pct"`
	AnnualizedPct  float64 `json:"annualized_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	AvgWin         float64 `json:"avg_win"`
	MaxWin         float64 `json:"max_win"`
	AvgLoss        float64 `json:"avg_loss"`
	MaxLoss        float64 `json:"max_loss"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
}

const tradingDaysPerYear = 252

// ComputeStats derives the summary from the curve and trades. Safe to call
// repeatedly; no state is consumed.
func ComputeStats(initialCapital float64, curve []EquityPoint, trades []Trade, riskFreeRate float64) Stats {
	stats := Stats{
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
		TotalTrades:    len(trades),
	}

	if len(curve) > 0 {
		stats.FinalEquity = curve[len(curve)-1].Equity
		stats.TotalReturn = stats.FinalEquity - initialCapital
		if initialCapital > 0 {
			stats.TotalReturnPct = (stats.FinalEquity/initialCapital - 1) * 100
		}
		stats.AnnualizedPct = annualizedPct(initialCapital, curve)
		stats.MaxDrawdownPct = MaxDrawdownPct(curve)
		stats.SharpeRatio = SharpeRatio(DailyReturns(curve), riskFreeRate)
	}

	var sumWin, sumLoss, holdingSum float64
	for _, trade := range trades {
		holdingSum += float64(trade.HoldingDays)
		switch {
		case trade.PnL > 0:
			stats.WinningTrades++
			sumWin += trade.PnL
			if trade.PnL > stats.MaxWin {
				stats.MaxWin = trade.PnL
			}
		case trade.PnL < 0:
			stats.LosingTrades++
			sumLoss += trade.PnL
			if trade.PnL < stats.MaxLoss {
				stats.MaxLoss = trade.PnL
			}
		}
	}
	if len(trades) > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(len(trades)) * 100
		stats.AvgHoldingDays = holdingSum / float64(len(trades))
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = sumWin / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = sumLoss / float64(stats.LosingTrades)
	}
	if sumLoss != 0 {
		stats.ProfitFactor = math.Abs(sumWin / sumLoss)
	}
	return stats
}

// DailyReturns converts the equity curve into day-over-day returns.
func DailyReturns(curve []EquityPoint) []ReturnPoint {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]ReturnPoint, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		r := 0.0
		if prev != 0 {
			r = (curve[i].Equity - prev) / prev
		}
		returns = append(returns, ReturnPoint{Date: curve[i].Date, Return: r})
	}
	return returns
}

// MaxDrawdownPct is the deepest peak-to-trough decline along the curve,
// as a non-positive percentage.
func MaxDrawdownPct(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	worst := 0.0
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak > 0 {
			dd := (point.Equity - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

// SharpeRatio annualizes the mean daily excess return over its sample
// deviation. Returns 0 with fewer than two points or a flat series.
func SharpeRatio(returns []ReturnPoint, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	dailyRiskFree := riskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, point := range returns {
		excess[i] = point.Return - dailyRiskFree
	}
	std := indicators.StdDev(excess)
	if std <= 0 {
		return 0
	}
	return indicators.Mean(excess) / std * math.Sqrt(tradingDaysPerYear)
}

// annualizedPct compounds the total return over the curve's calendar span.
func annualizedPct(initialCapital float64, curve []EquityPoint) float64 {
	if initialCapital <= 0 || len(curve) == 0 {
		return 0
	}
	days := calendarDays(curve[0].Date, curve[len(curve)-1].Date)
	if days <= 0 {
		return 0
	}
	final := curve[len(curve)-1].Equity
	if final <= 0 {
		return 0
	}
	years := float64(days) / 365.25
	return (math.Pow(final/initialCapital, 1/years) - 1) * 100
}
