package postgres

// schemaStatements bootstraps the three run tables. Statements are
// idempotent so EnsureSchema is safe on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id                TEXT PRIMARY KEY,
		strategy              TEXT NOT NULL,
		start_date            DATE NOT NULL,
		end_date              DATE NOT NULL,
		final_equity          DOUBLE PRECISION NOT NULL,
		total_return_pct      DOUBLE PRECISION NOT NULL,
		max_drawdown_pct      DOUBLE PRECISION NOT NULL,
		sharpe_ratio          DOUBLE PRECISION NOT NULL,
		total_trades          INTEGER NOT NULL,
		config                JSONB NOT NULL DEFAULT '{}',
		stats                 JSONB NOT NULL DEFAULT '{}',
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS backtest_trades (
		id            BIGSERIAL PRIMARY KEY,
		run_id        TEXT NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
		symbol        TEXT NOT NULL,
		entry_date    DATE NOT NULL,
		entry_price   DOUBLE PRECISION NOT NULL,
		quantity      INTEGER NOT NULL,
		exit_date     DATE NOT NULL,
		exit_price    DOUBLE PRECISION NOT NULL,
		exit_reason   TEXT NOT NULL,
		pnl           DOUBLE PRECISION NOT NULL,
		pnl_pct       DOUBLE PRECISION NOT NULL,
		holding_days  INTEGER NOT NULL,
		conviction    DOUBLE PRECISION NOT NULL DEFAULT 0,
		class         TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id)`,

	`CREATE TABLE IF NOT EXISTS backtest_equity (
		run_id     TEXT NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
		date       DATE NOT NULL,
		equity     DOUBLE PRECISION NOT NULL,
		cash       DOUBLE PRECISION NOT NULL,
		positions  INTEGER NOT NULL,
		PRIMARY KEY (run_id, date)
	)`,
}
