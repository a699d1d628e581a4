package strategy

import (
	"math"
	"time"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/fusion"
	"github.com/lodestar-quant/lodestar/internal/indicators"
)

// baselineDailyCap bounds how many tickets a baseline opens per day, applied
// in sorted-symbol order.
const baselineDailyCap = 10

// Baselines returns the reference strategies a comparison runs against, in
// their fixed execution order.
func Baselines() []backtest.SignalGenerator {
	return []backtest.SignalGenerator{
		&maCross{},
		&rsiReversion{},
		&buyHold{},
	}
}

// BaselineByName resolves one baseline strategy.
func BaselineByName(name string) (backtest.SignalGenerator, bool) {
	for _, gen := range Baselines() {
		if gen.Name() == name {
			return gen, true
		}
	}
	return nil, false
}

type baselineParams struct {
	conviction float64
	stopMult   float64
	targetMult float64
	riskReward float64
	sizePct    float64
	rationale  string
}

// baselinePlan builds a fixed-geometry plan around the day's close: entry
// zone is one percent either side, stop and target scale off the price.
func baselinePlan(symbol string, price float64, p baselineParams) *fusion.TradePlan {
	return &fusion.TradePlan{
		Symbol:          symbol,
		ConvictionScore: p.conviction,
		Class:           fusion.ClassA,
		Rationale:       p.rationale,
		EntryZone: fusion.PriceRange{
			Low:  round2(price * 0.99),
			High: round2(price * 1.01),
		},
		StopLossPrice:   round2(price * p.stopMult),
		TargetPrice:     round2(price * p.targetMult),
		RiskReward:      p.riskReward,
		PositionSizePct: p.sizePct,
		GeneratedAt:     time.Now(),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// maCross buys the 5-over-20 golden cross while price holds above the fast
// average.
type maCross struct{}

func (s *maCross) Name() string { return "ma_cross" }

func (s *maCross) Signals(snapshot backtest.DaySnapshot) []*fusion.TradePlan {
	var plans []*fusion.TradePlan
	for _, symbol := range snapshot.Symbols() {
		if len(plans) >= baselineDailyCap {
			break
		}
		candidate := snapshot.Candidates[symbol]
		closes := candidate.History.Closes()
		if len(closes) < 20 {
			continue
		}
		fast := indicators.SMA(closes, 5)
		slow := indicators.SMA(closes, 20)
		fastLast := fast[len(fast)-1]
		if fastLast <= slow[len(slow)-1] || candidate.Price <= fastLast {
			continue
		}
		plans = append(plans, baselinePlan(symbol, candidate.Price, baselineParams{
			conviction: 75,
			stopMult:   0.95,
			targetMult: 1.10,
			riskReward: 2.0,
			sizePct:    0.10,
			rationale:  "5-day average above 20-day with price holding the fast line",
		}))
	}
	return plans
}

// rsiReversion buys oversold dips: 14-bar RSI under 30.
type rsiReversion struct{}

func (s *rsiReversion) Name() string { return "rsi_reversion" }

func (s *rsiReversion) Signals(snapshot backtest.DaySnapshot) []*fusion.TradePlan {
	var plans []*fusion.TradePlan
	for _, symbol := range snapshot.Symbols() {
		if len(plans) >= baselineDailyCap {
			break
		}
		candidate := snapshot.Candidates[symbol]
		closes := candidate.History.Closes()
		if len(closes) < 15 {
			continue
		}
		rsi := indicators.RSI(closes, 14)
		if rsi[len(rsi)-1] >= 30 {
			continue
		}
		plans = append(plans, baselinePlan(symbol, candidate.Price, baselineParams{
			conviction: 70,
			stopMult:   0.93,
			targetMult: 1.15,
			riskReward: 2.1,
			sizePct:    0.08,
			rationale:  "14-day RSI oversold below 30",
		}))
	}
	return plans
}

// buyHold enters every candidate it can and rides the time limit.
type buyHold struct{}

func (s *buyHold) Name() string { return "buy_hold" }

func (s *buyHold) Signals(snapshot backtest.DaySnapshot) []*fusion.TradePlan {
	var plans []*fusion.TradePlan
	for _, symbol := range snapshot.Symbols() {
		if len(plans) >= baselineDailyCap {
			break
		}
		candidate := snapshot.Candidates[symbol]
		plans = append(plans, baselinePlan(symbol, candidate.Price, baselineParams{
			conviction: 60,
			stopMult:   0.80,
			targetMult: 2.00,
			riskReward: 4.0,
			sizePct:    0.05,
			rationale:  "passive hold to the time limit",
		}))
	}
	return plans
}
