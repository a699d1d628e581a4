// Package postgres implements the persistence repositories on PostgreSQL
// through sqlx. Every call carries a bounded timeout derived from the
// configured query budget.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/persistence"
)

// Store owns the connection pool and the repository set bound to it.
type Store struct {
	db     *sqlx.DB
	repos  persistence.Repository
	config persistence.Config
}

// Connect opens a pool, verifies it with a ping, and binds the repositories.
func Connect(ctx context.Context, config persistence.Config) (*Store, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{
		db:     db,
		repos:  NewRepository(db, config.QueryTimeout),
		config: config,
	}

	log.Info().Int("max_open_conns", config.MaxOpenConns).Msg("database connected")
	return store, nil
}

// NewRepository binds the three repositories to an existing pool. Exposed
// separately so tests can inject a mock database.
func NewRepository(db *sqlx.DB, timeout time.Duration) persistence.Repository {
	return persistence.Repository{
		Runs:   NewRunsRepo(db, timeout),
		Trades: NewTradesRepo(db, timeout),
		Equity: NewEquityRepo(db, timeout),
	}
}

// Repository returns the repository set bound to this store's pool.
func (s *Store) Repository() *persistence.Repository {
	return &s.repos
}

// Health verifies the pool within the configured query budget.
func (s *Store) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema creates the run tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.QueryTimeout)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
