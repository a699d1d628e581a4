package backtest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig marks configuration faults caught before a run starts.
var ErrInvalidConfig = errors.New("invalid backtest config")

// ErrIntegrity marks a violated simulation invariant: negative cash or an
// open position with no price after the delisting check. These indicate a
// bug, not a data condition, and abort the run.
var ErrIntegrity = errors.New("simulation integrity violation")

// Config holds the simulation parameters.
type Config struct {
	InitialCapital   float64 `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate   float64 `json:"commission_rate" yaml:"commission_rate"`
	SlippageRate     float64 `json:"slippage_rate" yaml:"slippage_rate"`
	MaxPositionSize  float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxHoldingDays   int     `json:"max_holding_days" yaml:"max_holding_days"`
	MinTicketSize    float64 `json:"min_ticket_size" yaml:"min_ticket_size"`
	LotSize          int     `json:"lot_size" yaml:"lot_size"`
	MinHistoryBars   int     `json:"min_history_bars" yaml:"min_history_bars"`
	MinDailyTurnover float64 `json:"min_daily_turnover" yaml:"min_daily_turnover"`
	RiskFreeRate     float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

// DefaultConfig returns the standard simulation parameters: one million of
// starting capital, A-share style round lots, and a 30-calendar-day holding
// cap.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   1_000_000,
		CommissionRate:   0.0003,
		SlippageRate:     0.001,
		MaxPositionSize:  0.25,
		MaxHoldingDays:   30,
		MinTicketSize:    10_000,
		LotSize:          100,
		MinHistoryBars:   60,
		MinDailyTurnover: 0,
		RiskFreeRate:     0.03,
	}
}

// Validate reports configuration faults wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.InitialCapital <= 0 {
		add("initial_capital must be positive, got %.2f", c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		add("commission_rate outside [0,1)")
	}
	if c.SlippageRate < 0 || c.SlippageRate >= 1 {
		add("slippage_rate outside [0,1)")
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		add("max_position_size outside (0,1]")
	}
	if c.MaxHoldingDays < 1 {
		add("max_holding_days must be at least 1")
	}
	if c.MinTicketSize < 0 {
		add("min_ticket_size is negative")
	}
	if c.LotSize < 1 {
		add("lot_size must be at least 1")
	}
	if c.MinHistoryBars < 0 {
		add("min_history_bars is negative")
	}
	if c.MinDailyTurnover < 0 {
		add("min_daily_turnover is negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
