package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lodestar-quant/lodestar/internal/persistence"
)

const defaultListLimit = 50

// runsRepo implements RunsRepo for PostgreSQL.
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a PostgreSQL runs repository.
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunsRepo {
	return &runsRepo{db: db, timeout: timeout}
}

// Insert adds a run row. A duplicate run id maps to ErrDuplicate.
func (r *runsRepo) Insert(ctx context.Context, run persistence.RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal run config: %w", err)
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats: %w", err)
	}

	query := `
		INSERT INTO backtest_runs
			(run_id, strategy, start_date, end_date, final_equity,
			 total_return_pct, max_drawdown_pct, sharpe_ratio, total_trades,
			 config, stats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID, run.Strategy, run.StartDate, run.EndDate, run.FinalEquity,
		run.TotalReturnPct, run.MaxDrawdownPct, run.SharpeRatio, run.TotalTrades,
		configJSON, statsJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, run.RunID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves one run by id.
func (r *runsRepo) Get(ctx context.Context, runID string) (*persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, strategy, start_date, end_date, final_equity,
		       total_return_pct, max_drawdown_pct, sharpe_ratio, total_trades,
		       config, stats, created_at
		FROM backtest_runs
		WHERE run_id = $1`

	rec, err := scanRun(r.db.QueryRowxContext(ctx, query, runID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return rec, nil
}

// List retrieves the most recent runs, newest first.
func (r *runsRepo) List(ctx context.Context, limit int) ([]persistence.RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT run_id, strategy, start_date, end_date, final_equity,
		       total_return_pct, max_drawdown_pct, sharpe_ratio, total_trades,
		       config, stats, created_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []persistence.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run; cascades take its trades and equity rows with it.
func (r *runsRepo) Delete(ctx context.Context, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrNotFound, runID)
	}
	return nil
}

func scanRun(scan func(dest ...interface{}) error) (*persistence.RunRecord, error) {
	var rec persistence.RunRecord
	var configJSON, statsJSON []byte

	err := scan(&rec.RunID, &rec.Strategy, &rec.StartDate, &rec.EndDate, &rec.FinalEquity,
		&rec.TotalReturnPct, &rec.MaxDrawdownPct, &rec.SharpeRatio, &rec.TotalTrades,
		&configJSON, &statsJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
			return nil, fmt.Errorf("failed to decode run config: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &rec.Stats); err != nil {
			return nil, fmt.Errorf("failed to decode run stats: %w", err)
		}
	}
	return &rec, nil
}
