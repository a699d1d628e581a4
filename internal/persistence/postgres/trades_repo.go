package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lodestar-quant/lodestar/internal/persistence"
)

// tradesRepo implements TradesRepo for PostgreSQL.
type tradesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTradesRepo creates a PostgreSQL trades repository.
func NewTradesRepo(db *sqlx.DB, timeout time.Duration) persistence.TradesRepo {
	return &tradesRepo{db: db, timeout: timeout}
}

// InsertBatch writes the closed trades of a run in one transaction. The
// timeout scales with batch size so large runs do not trip the per-query
// budget.
func (r *tradesRepo) InsertBatch(ctx context.Context, trades []persistence.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(trades)/500+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, symbol, entry_date, entry_price, quantity,
			 exit_date, exit_price, exit_reason, pnl, pnl_pct,
			 holding_days, conviction, class)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, trade := range trades {
		_, err = stmt.ExecContext(ctx,
			trade.RunID, trade.Symbol, trade.EntryDate, trade.EntryPrice, trade.Quantity,
			trade.ExitDate, trade.ExitPrice, trade.ExitReason, trade.PnL, trade.PnLPct,
			trade.HoldingDays, trade.Conviction, trade.Class)
		if err != nil {
			return fmt.Errorf("failed to insert trade for %s: %w", trade.Symbol, err)
		}
	}

	return tx.Commit()
}

// ListByRun retrieves a run's trades in exit order.
func (r *tradesRepo) ListByRun(ctx context.Context, runID string) ([]persistence.TradeRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, run_id, symbol, entry_date, entry_price, quantity,
		       exit_date, exit_price, exit_reason, pnl, pnl_pct,
		       holding_days, conviction, class
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY exit_date, id`

	rows, err := r.db.QueryxContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []persistence.TradeRecord
	for rows.Next() {
		var rec persistence.TradeRecord
		err := rows.Scan(&rec.ID, &rec.RunID, &rec.Symbol, &rec.EntryDate, &rec.EntryPrice,
			&rec.Quantity, &rec.ExitDate, &rec.ExitPrice, &rec.ExitReason, &rec.PnL,
			&rec.PnLPct, &rec.HoldingDays, &rec.Conviction, &rec.Class)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}
