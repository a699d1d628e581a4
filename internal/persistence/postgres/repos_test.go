package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestar-quant/lodestar/internal/backtest"
	"github.com/lodestar-quant/lodestar/internal/persistence"
)

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func sampleRun() persistence.RunRecord {
	return persistence.RunRecord{
		RunID:          "run-abc",
		Strategy:       "lodestar_core",
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		FinalEquity:    1_011_281,
		TotalReturnPct: 1.1281,
		MaxDrawdownPct: -0.3,
		SharpeRatio:    1.9,
		TotalTrades:    2,
		Config:         backtest.DefaultConfig(),
		Stats:          backtest.Stats{FinalEquity: 1_011_281, TotalTrades: 2},
	}
}

func TestRunsRepoInsert(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewRunsRepo(db, time.Second)
	run := sampleRun()

	configJSON, err := json.Marshal(run.Config)
	require.NoError(t, err)
	statsJSON, err := json.Marshal(run.Stats)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO backtest_runs").
		WithArgs(run.RunID, run.Strategy, run.StartDate, run.EndDate, run.FinalEquity,
			run.TotalReturnPct, run.MaxDrawdownPct, run.SharpeRatio, run.TotalTrades,
			configJSON, statsJSON).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepoInsertDuplicate(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewRunsRepo(db, time.Second)

	mock.ExpectExec("INSERT INTO backtest_runs").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Insert(context.Background(), sampleRun())
	assert.ErrorIs(t, err, persistence.ErrDuplicate)
}

func TestRunsRepoGetRoundTrip(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewRunsRepo(db, time.Second)
	run := sampleRun()
	run.CreatedAt = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

	configJSON, err := json.Marshal(run.Config)
	require.NoError(t, err)
	statsJSON, err := json.Marshal(run.Stats)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"run_id", "strategy", "start_date", "end_date", "final_equity",
		"total_return_pct", "max_drawdown_pct", "sharpe_ratio", "total_trades",
		"config", "stats", "created_at",
	}).AddRow(run.RunID, run.Strategy, run.StartDate, run.EndDate, run.FinalEquity,
		run.TotalReturnPct, run.MaxDrawdownPct, run.SharpeRatio, run.TotalTrades,
		configJSON, statsJSON, run.CreatedAt)

	mock.ExpectQuery("SELECT (.+) FROM backtest_runs").
		WithArgs("run-abc").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "run-abc")
	require.NoError(t, err)
	assert.Equal(t, run, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepoGetNotFound(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewRunsRepo(db, time.Second)

	mock.ExpectQuery("SELECT (.+) FROM backtest_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestRunsRepoListOrder(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewRunsRepo(db, time.Second)

	configJSON, err := json.Marshal(backtest.DefaultConfig())
	require.NoError(t, err)
	statsJSON, err := json.Marshal(backtest.Stats{})
	require.NoError(t, err)

	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"run_id", "strategy", "start_date", "end_date", "final_equity",
		"total_return_pct", "max_drawdown_pct", "sharpe_ratio", "total_trades",
		"config", "stats", "created_at",
	}).
		AddRow("run-2", "ma_cross", base, base, 1.0, 0.0, 0.0, 0.0, 0, configJSON, statsJSON, base.Add(2*time.Hour)).
		AddRow("run-1", "lodestar_core", base, base, 1.0, 0.0, 0.0, 0.0, 0, configJSON, statsJSON, base.Add(time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM backtest_runs").
		WithArgs(25).
		WillReturnRows(rows)

	runs, err := repo.List(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)
}

func TestRunsRepoDeleteNotFound(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewRunsRepo(db, time.Second)

	mock.ExpectExec("DELETE FROM backtest_runs").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func sampleTrades() []persistence.TradeRecord {
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := entry.AddDate(0, 0, 5)
	return []persistence.TradeRecord{
		{
			RunID: "run-abc", Symbol: "STAR", EntryDate: entry, EntryPrice: 10.01,
			Quantity: 9900, ExitDate: exit, ExitPrice: 11.2, ExitReason: "PROFIT_TARGET",
			PnL: 11781, PnLPct: 11.888, HoldingDays: 5, Conviction: 66.6, Class: "A",
		},
		{
			RunID: "run-abc", Symbol: "DUD", EntryDate: entry, EntryPrice: 20,
			Quantity: 500, ExitDate: exit, ExitPrice: 19, ExitReason: "STOP_LOSS",
			PnL: -500, PnLPct: -5, HoldingDays: 5,
		},
	}
}

func TestTradesRepoInsertBatch(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewTradesRepo(db, time.Second)
	trades := sampleTrades()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO backtest_trades")
	for _, trade := range trades {
		prep.ExpectExec().
			WithArgs(trade.RunID, trade.Symbol, trade.EntryDate, trade.EntryPrice, trade.Quantity,
				trade.ExitDate, trade.ExitPrice, trade.ExitReason, trade.PnL, trade.PnLPct,
				trade.HoldingDays, trade.Conviction, trade.Class).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.InsertBatch(context.Background(), trades))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradesRepoInsertBatchRollsBackOnFailure(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewTradesRepo(db, time.Second)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO backtest_trades")
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InsertBatch(context.Background(), sampleTrades()[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert trade")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradesRepoInsertBatchEmpty(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewTradesRepo(db, time.Second)

	require.NoError(t, repo.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradesRepoListByRun(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewTradesRepo(db, time.Second)
	trades := sampleTrades()

	rows := sqlmock.NewRows([]string{
		"id", "run_id", "symbol", "entry_date", "entry_price", "quantity",
		"exit_date", "exit_price", "exit_reason", "pnl", "pnl_pct",
		"holding_days", "conviction", "class",
	})
	for i, trade := range trades {
		rows.AddRow(int64(i+1), trade.RunID, trade.Symbol, trade.EntryDate, trade.EntryPrice,
			trade.Quantity, trade.ExitDate, trade.ExitPrice, trade.ExitReason, trade.PnL,
			trade.PnLPct, trade.HoldingDays, trade.Conviction, trade.Class)
	}

	mock.ExpectQuery("SELECT (.+) FROM backtest_trades").
		WithArgs("run-abc").
		WillReturnRows(rows)

	got, err := repo.ListByRun(context.Background(), "run-abc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "STAR", got[0].Symbol)
	assert.Equal(t, 66.6, got[0].Conviction)
	assert.Equal(t, "DUD", got[1].Symbol)
}

func TestEquityRepoRoundTrip(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewEquityRepo(db, time.Second)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	points := []persistence.EquityRecord{
		{RunID: "run-abc", Date: base, Equity: 1_000_000, Cash: 900_000, Positions: 2},
		{RunID: "run-abc", Date: base.AddDate(0, 0, 1), Equity: 1_005_000, Cash: 900_000, Positions: 2},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO backtest_equity")
	for _, point := range points {
		prep.ExpectExec().
			WithArgs(point.RunID, point.Date, point.Equity, point.Cash, point.Positions).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	require.NoError(t, repo.InsertBatch(context.Background(), points))

	rows := sqlmock.NewRows([]string{"run_id", "date", "equity", "cash", "positions"})
	for _, point := range points {
		rows.AddRow(point.RunID, point.Date, point.Equity, point.Cash, point.Positions)
	}
	mock.ExpectQuery("SELECT (.+) FROM backtest_equity").
		WithArgs("run-abc").
		WillReturnRows(rows)

	got, err := repo.ListByRun(context.Background(), "run-abc")
	require.NoError(t, err)
	assert.Equal(t, points, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaAppliesAllStatements(t *testing.T) {
	db, mock := mockDB(t)
	store := &Store{db: db, config: persistence.DefaultConfig()}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS backtest_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS backtest_trades").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_backtest_trades_run").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS backtest_equity").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
