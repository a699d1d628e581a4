// Package persistence defines the storage contracts for finished backtest
// runs. The simulation engine never touches a database; callers hand a
// completed Result to a Repository and the concrete driver lives in a
// subpackage.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/lodestar-quant/lodestar/internal/backtest"
)

// ErrNotFound is returned when a run id has no stored row.
var ErrNotFound = errors.New("run not found")

// ErrDuplicate is returned when a run id is inserted twice.
var ErrDuplicate = errors.New("run already recorded")

// Config holds database connection settings.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// DefaultConfig returns pool settings suitable for a research workstation.
// Persistence stays off until a DSN is configured explicitly.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Validate reports connection-setting faults.
func (c Config) Validate() []string {
	var problems []string
	if c.Enabled && c.DSN == "" {
		problems = append(problems, "dsn is required when persistence is enabled")
	}
	if c.MaxOpenConns <= 0 {
		problems = append(problems, "max_open_conns must be positive")
	}
	if c.MaxIdleConns < 0 {
		problems = append(problems, "max_idle_conns is negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		problems = append(problems, "max_idle_conns exceeds max_open_conns")
	}
	if c.QueryTimeout <= 0 {
		problems = append(problems, "query_timeout must be positive")
	}
	return problems
}

// RunRecord is one stored backtest run. Headline stats are lifted into
// columns for listing; the full Stats and Config ride along as JSON.
type RunRecord struct {
	RunID          string          `json:"run_id"`
	Strategy       string          `json:"strategy"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	FinalEquity    float64         `json:"final_equity"`
	TotalReturnPct float64         `json:"total_return_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	TotalTrades    int             `json:"total_trades"`
	Config         backtest.Config `json:"config"`
	Stats          backtest.Stats  `json:"stats"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TradeRecord is one closed round trip of a stored run. Conviction and
// Class are zero-valued for baseline strategies that attach no plan.
type TradeRecord struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Symbol      string    `json:"symbol"`
	EntryDate   time.Time `json:"entry_date"`
	EntryPrice  float64   `json:"entry_price"`
	Quantity    int       `json:"quantity"`
	ExitDate    time.Time `json:"exit_date"`
	ExitPrice   float64   `json:"exit_price"`
	ExitReason  string    `json:"exit_reason"`
	PnL         float64   `json:"pnl"`
	PnLPct      float64   `json:"pnl_pct"`
	HoldingDays int       `json:"holding_days"`
	Conviction  float64   `json:"conviction"`
	Class       string    `json:"class"`
}

// EquityRecord is one day of a stored run's mark-to-market curve.
type EquityRecord struct {
	RunID     string    `json:"run_id"`
	Date      time.Time `json:"date"`
	Equity    float64   `json:"equity"`
	Cash      float64   `json:"cash"`
	Positions int       `json:"positions"`
}

// RunsRepo stores one row per completed backtest run.
type RunsRepo interface {
	Insert(ctx context.Context, run RunRecord) error
	Get(ctx context.Context, runID string) (*RunRecord, error)
	List(ctx context.Context, limit int) ([]RunRecord, error)
	Delete(ctx context.Context, runID string) error
}

// TradesRepo stores the closed trades of a run.
type TradesRepo interface {
	InsertBatch(ctx context.Context, trades []TradeRecord) error
	ListByRun(ctx context.Context, runID string) ([]TradeRecord, error)
}

// EquityRepo stores the equity curve of a run.
type EquityRepo interface {
	InsertBatch(ctx context.Context, points []EquityRecord) error
	ListByRun(ctx context.Context, runID string) ([]EquityRecord, error)
}

// Repository bundles the three repos behind one handle.
type Repository struct {
	Runs   RunsRepo
	Trades TradesRepo
	Equity EquityRepo
}

// SaveResult maps a finished run to records and writes all three tables.
func (r *Repository) SaveResult(ctx context.Context, result *backtest.Result) error {
	run, trades, equity := FromResult(result)
	if err := r.Runs.Insert(ctx, run); err != nil {
		return err
	}
	if err := r.Trades.InsertBatch(ctx, trades); err != nil {
		return err
	}
	return r.Equity.InsertBatch(ctx, equity)
}

// FromResult flattens a backtest result into storable records.
func FromResult(result *backtest.Result) (RunRecord, []TradeRecord, []EquityRecord) {
	run := RunRecord{
		RunID:          result.RunID,
		Strategy:       result.Strategy,
		StartDate:      result.StartDate,
		EndDate:        result.EndDate,
		FinalEquity:    result.Stats.FinalEquity,
		TotalReturnPct: result.Stats.TotalReturnPct,
		MaxDrawdownPct: result.Stats.MaxDrawdownPct,
		SharpeRatio:    result.Stats.SharpeRatio,
		TotalTrades:    result.Stats.TotalTrades,
		Config:         result.Config,
		Stats:          result.Stats,
	}

	trades := make([]TradeRecord, 0, len(result.Trades))
	for _, trade := range result.Trades {
		rec := TradeRecord{
			RunID:       result.RunID,
			Symbol:      trade.Symbol,
			EntryDate:   trade.EntryDate,
			EntryPrice:  trade.EntryPrice,
			Quantity:    trade.Quantity,
			ExitDate:    trade.ExitDate,
			ExitPrice:   trade.ExitPrice,
			ExitReason:  string(trade.ExitReason),
			PnL:         trade.PnL,
			PnLPct:      trade.PnLPct,
			HoldingDays: trade.HoldingDays,
		}
		if trade.Plan != nil {
			rec.Conviction = trade.Plan.ConvictionScore
			rec.Class = string(trade.Plan.Class)
		}
		trades = append(trades, rec)
	}

	equity := make([]EquityRecord, 0, len(result.EquityCurve))
	for _, point := range result.EquityCurve {
		equity = append(equity, EquityRecord{
			RunID:     result.RunID,
			Date:      point.Date,
			Equity:    point.Equity,
			Cash:      point.Cash,
			Positions: point.Positions,
		})
	}

	return run, trades, equity
}
