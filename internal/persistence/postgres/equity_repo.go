package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lodestar-quant/lodestar/internal/persistence"
)

// equityRepo implements EquityRepo for PostgreSQL.
type equityRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEquityRepo creates a PostgreSQL equity-curve repository.
func NewEquityRepo(db *sqlx.DB, timeout time.Duration) persistence.EquityRepo {
	return &equityRepo{db: db, timeout: timeout}
}

// InsertBatch writes a run's equity curve in one transaction.
func (r *equityRepo) InsertBatch(ctx context.Context, points []persistence.EquityRecord) error {
	if len(points) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(points)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_equity (run_id, date, equity, cash, positions)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, point := range points {
		_, err = stmt.ExecContext(ctx,
			point.RunID, point.Date, point.Equity, point.Cash, point.Positions)
		if err != nil {
			return fmt.Errorf("failed to insert equity point: %w", err)
		}
	}

	return tx.Commit()
}

// ListByRun retrieves a run's equity curve in date order.
func (r *equityRepo) ListByRun(ctx context.Context, runID string) ([]persistence.EquityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT run_id, date, equity, cash, positions
		FROM backtest_equity
		WHERE run_id = $1
		ORDER BY date`

	rows, err := r.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	var points []persistence.EquityRecord
	for rows.Next() {
		var rec persistence.EquityRecord
		if err := rows.Scan(&rec.RunID, &rec.Date, &rec.Equity, &rec.Cash, &rec.Positions); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}
		points = append(points, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate equity curve: %w", err)
	}
	return points, nil
}
