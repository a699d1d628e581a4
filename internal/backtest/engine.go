// Package backtest replays a signal generator against historical bars with
// cash accounting, lot rounding, and a fixed-priority exit state machine per
// position. The engine is strategy-agnostic: anything implementing
// SignalGenerator can drive it.
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/fusion"
	"github.com/lodestar-quant/lodestar/internal/indicators"
	"github.com/lodestar-quant/lodestar/internal/market"
)

// Candidate is one stock eligible for signaling on a given day.
type Candidate struct {
	Symbol  string
	History *market.Series // bars up to and including the snapshot date
	Price   float64        // the day's close
}

// DaySnapshot is everything a generator may see for one trading day. Only
// point-in-time history is included; looking ahead is impossible by
// construction.
type DaySnapshot struct {
	Date       time.Time
	Candidates map[string]Candidate
}

// Symbols lists the candidates sorted ascending for deterministic iteration.
func (s DaySnapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Candidates))
	for sym := range s.Candidates {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// SignalGenerator produces entry plans for a day. Implementations must be
// deterministic for a given snapshot; emitted order is execution order.
type SignalGenerator interface {
	Name() string
	Signals(snapshot DaySnapshot) []*fusion.TradePlan
}

// Progress reports per-day simulation state to an observer.
type Progress struct {
	RunID      string    `json:"run_id"`
	Date       time.Time `json:"date"`
	DayIndex   int       `json:"day_index"`
	TotalDays  int       `json:"total_days"`
	Equity     float64   `json:"equity"`
	Cash       float64   `json:"cash"`
	OpenCount  int       `json:"open_count"`
	TradeCount int       `json:"trade_count"`
}

// ProgressFn observes the simulation day by day. Called synchronously;
// keep it cheap.
type ProgressFn func(Progress)

// Engine drives the daily simulation loop over a fixed universe.
type Engine struct {
	config   Config
	universe market.Universe
	progress ProgressFn
}

// NewEngine validates the configuration and binds the universe.
func NewEngine(config Config, universe market.Universe) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{config: config, universe: universe}, nil
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config { return e.config }

// OnProgress registers a per-day observer. Must be set before Run.
func (e *Engine) OnProgress(fn ProgressFn) { e.progress = fn }

// Run replays the generator's signals across every trading day in
// [start, end]. Cancellation is honored between days. Only configuration
// and integrity faults abort a run.
func (e *Engine) Run(ctx context.Context, gen SignalGenerator, start, end time.Time) (*Result, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: nil signal generator", ErrInvalidConfig)
	}

	runID := uuid.New().String()
	days := e.universe.TradingDays(start, end)

	log.Info().
		Str("run_id", runID).
		Str("strategy", gen.Name()).
		Int("trading_days", len(days)).
		Int("symbols", len(e.universe)).
		Float64("initial_capital", e.config.InitialCapital).
		Msg("Backtest starting")

	result := &Result{
		RunID:     runID,
		Strategy:  gen.Name(),
		StartDate: start,
		EndDate:   end,
		Config:    e.config,
	}
	if len(days) == 0 {
		log.Warn().Str("run_id", runID).Msg("No trading days in range")
		result.Stats = ComputeStats(e.config.InitialCapital, nil, nil, e.config.RiskFreeRate)
		return result, nil
	}

	cash := e.config.InitialCapital
	positions := make(map[string]*position)
	var trades []Trade
	var curve []EquityPoint

	for i, today := range days {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// 1. Exits first: freed capital funds same-day entries.
		for _, sym := range openSymbols(positions) {
			pos := positions[sym]
			exitPrice, reason, closed := e.checkExit(pos, today)
			if !closed {
				continue
			}
			cash += float64(pos.qty) * exitPrice * (1 - e.config.CommissionRate)
			trade := pos.close(today, exitPrice, reason)
			trades = append(trades, trade)
			delete(positions, sym)
			log.Debug().
				Str("symbol", sym).
				Str("reason", string(reason)).
				Float64("exit_price", exitPrice).
				Float64("pnl", trade.PnL).
				Msg("Position closed")
		}

		// 2. Signals from the day's snapshot.
		plans := gen.Signals(e.snapshot(today))

		// 3. Entries in emitted order.
		for _, plan := range plans {
			if plan == nil {
				continue
			}
			if _, held := positions[plan.Symbol]; held {
				continue
			}
			series, ok := e.universe[plan.Symbol]
			if !ok {
				continue
			}
			bar, ok := series.At(today)
			if !ok {
				continue
			}
			price := bar.Close
			if !plan.EntryZone.Contains(price) {
				continue
			}

			value := cash * plan.PositionSizePct
			if ceiling := cash * e.config.MaxPositionSize; value > ceiling {
				value = ceiling
			}
			if value < e.config.MinTicketSize {
				continue
			}
			entryPrice := price * (1 + e.config.SlippageRate)
			lots := math.Floor(value / entryPrice / float64(e.config.LotSize))
			qty := int(lots) * e.config.LotSize
			if qty <= 0 {
				continue
			}

			cash -= float64(qty) * entryPrice * (1 + e.config.CommissionRate)
			positions[plan.Symbol] = &position{
				symbol:     plan.Symbol,
				entryDate:  today,
				entryPrice: entryPrice,
				qty:        qty,
				plan:       plan,
			}
			log.Debug().
				Str("symbol", plan.Symbol).
				Int("quantity", qty).
				Float64("entry_price", entryPrice).
				Float64("cash", cash).
				Msg("Position opened")
		}

		if cash < 0 {
			return nil, fmt.Errorf("%w: cash %.2f below zero on %s",
				ErrIntegrity, cash, today.Format("2006-01-02"))
		}

		// 4. Mark to market.
		equity := cash
		for _, sym := range openSymbols(positions) {
			bar, ok := e.universe[sym].At(today)
			if !ok {
				return nil, fmt.Errorf("%w: open position %s has no price on %s",
					ErrIntegrity, sym, today.Format("2006-01-02"))
			}
			equity += float64(positions[sym].qty) * bar.Close
		}
		curve = append(curve, EquityPoint{
			Date: today, Equity: equity, Cash: cash, Positions: len(positions),
		})

		if e.progress != nil {
			e.progress(Progress{
				RunID:      runID,
				Date:       today,
				DayIndex:   i + 1,
				TotalDays:  len(days),
				Equity:     equity,
				Cash:       cash,
				OpenCount:  len(positions),
				TradeCount: len(trades),
			})
		}
	}

	// Force-close whatever is still open at the final date.
	final := days[len(days)-1]
	for _, sym := range openSymbols(positions) {
		pos := positions[sym]
		base := pos.entryPrice * 0.9
		if lastBar, ok := e.universe[sym].UpTo(final).LastBar(); ok {
			base = lastBar.Close
		}
		exitPrice := base * (1 - e.config.SlippageRate)
		cash += float64(pos.qty) * exitPrice * (1 - e.config.CommissionRate)
		trades = append(trades, pos.close(final, exitPrice, ExitForceClose))
		delete(positions, sym)
	}

	result.Trades = trades
	result.EquityCurve = curve
	result.DailyReturns = DailyReturns(curve)
	result.Stats = ComputeStats(e.config.InitialCapital, curve, trades, e.config.RiskFreeRate)

	log.Info().
		Str("run_id", runID).
		Int("trades", len(trades)).
		Float64("final_cash", cash).
		Float64("final_equity", result.Stats.FinalEquity).
		Float64("return_pct", result.Stats.TotalReturnPct).
		Msg("Backtest finished")
	return result, nil
}

// checkExit applies the fixed exit priority: delisting, stop, target, time.
func (e *Engine) checkExit(pos *position, today time.Time) (float64, ExitReason, bool) {
	series := e.universe[pos.symbol]
	bar, ok := series.At(today)
	if !ok {
		// No bar today: treat as delisted at a punitive price, no slippage.
		return pos.entryPrice * 0.9, ExitDelisted, true
	}

	price := bar.Close
	switch {
	case price <= pos.plan.StopLossPrice:
		return price * (1 - e.config.SlippageRate), ExitStopLoss, true
	case price >= pos.plan.TargetPrice:
		return price * (1 - e.config.SlippageRate), ExitProfitTarget, true
	case calendarDays(pos.entryDate, today) >= e.config.MaxHoldingDays:
		return price * (1 - e.config.SlippageRate), ExitTimeLimit, true
	}
	return 0, "", false
}

// snapshot assembles the day's eligible candidates: a bar today, enough
// history, and (when configured) enough average daily turnover.
func (e *Engine) snapshot(today time.Time) DaySnapshot {
	candidates := make(map[string]Candidate)
	for _, sym := range e.universe.Symbols() {
		series := e.universe[sym]
		bar, ok := series.At(today)
		if !ok {
			continue
		}
		history := series.UpTo(today)
		if history.Len() < e.config.MinHistoryBars {
			continue
		}
		if e.config.MinDailyTurnover > 0 && !e.turnoverOK(history) {
			continue
		}
		candidates[sym] = Candidate{Symbol: sym, History: history, Price: bar.Close}
	}
	return DaySnapshot{Date: today, Candidates: candidates}
}

const turnoverWindow = 20

func (e *Engine) turnoverOK(history *market.Series) bool {
	window := history.Tail(turnoverWindow)
	turnover := make([]float64, window.Len())
	for i, bar := range window.Bars {
		turnover[i] = bar.Close * bar.Volume
	}
	return indicators.Mean(turnover) >= e.config.MinDailyTurnover
}

func openSymbols(positions map[string]*position) []string {
	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}
