package backtest

import (
	"time"

	"github.com/lodestar-quant/lodestar/internal/fusion"
)

// ExitReason is the terminal state of a position.
type ExitReason string

const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitTimeLimit    ExitReason = "TIME_LIMIT"
	ExitDelisted     ExitReason = "DELISTED"
	ExitForceClose   ExitReason = "FORCE_CLOSE"
)

// Trade is a closed round trip. Commission is settled against cash, not PnL,
// so PnL is the raw entry-to-exit price move times quantity.
type Trade struct {
	Symbol      string            `json:"symbol"`
	EntryDate   time.Time         `json:"entry_date"`
	EntryPrice  float64           `json:"entry_price"`
	Quantity    int               `json:"quantity"`
	ExitDate    time.Time         `json:"exit_date"`
	ExitPrice   float64           `json:"exit_price"`
	ExitReason  ExitReason        `json:"exit_reason"`
	PnL         float64           `json:"pnl"`
	PnLPct      float64           `json:"pnl_pct"`
	HoldingDays int               `json:"holding_days"`
	Plan        *fusion.TradePlan `json:"plan,omitempty"`
}

// position is the mutable runtime state of one open holding. It leaves the
// engine only as an immutable Trade.
type position struct {
	symbol     string
	entryDate  time.Time
	entryPrice float64
	qty        int
	plan       *fusion.TradePlan
}

func (p *position) close(exitDate time.Time, exitPrice float64, reason ExitReason) Trade {
	pnl := float64(p.qty) * (exitPrice - p.entryPrice)
	pnlPct := 0.0
	if p.entryPrice > 0 {
		pnlPct = (exitPrice - p.entryPrice) / p.entryPrice
	}
	return Trade{
		Symbol:      p.symbol,
		EntryDate:   p.entryDate,
		EntryPrice:  p.entryPrice,
		Quantity:    p.qty,
		ExitDate:    exitDate,
		ExitPrice:   exitPrice,
		ExitReason:  reason,
		PnL:         pnl,
		PnLPct:      pnlPct,
		HoldingDays: calendarDays(p.entryDate, exitDate),
		Plan:        p.plan,
	}
}

// calendarDays counts whole days between two trading dates.
func calendarDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// EquityPoint is one day's mark-to-market snapshot.
type EquityPoint struct {
	Date      time.Time `json:"date"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	Positions int       `json:"positions"`
}

// ReturnPoint is one day's equity-curve return.
type ReturnPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// Result aggregates a finished run. Built once at run end, never mutated.
type Result struct {
	RunID        string        `json:"run_id"`
	Strategy     string        `json:"strategy"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	Config       Config        `json:"config"`
	Trades       []Trade       `json:"trades"`
	EquityCurve  []EquityPoint `json:"equity_curve"`
	DailyReturns []ReturnPoint `json:"daily_returns"`
	Stats        Stats         `json:"stats"`
}
