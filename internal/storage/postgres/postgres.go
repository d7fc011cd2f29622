// Package postgres persists completed raids in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/raid/internal/config"
)

const (
	applicationName   = "raidserver"
	healthCheckPeriod = 30 * time.Second
)

// ErrSchemaMissing is returned by RequireSchema when a raid table is absent.
var ErrSchemaMissing = errors.New("raid schema missing, run migrate up")

// schemaTables are the tables the repositories write to.
var schemaTables = []string{"raids", "raid_players"}

// Store owns the connection pool and the repositories built on it.
type Store struct {
	pool  *pgxpool.Pool
	Raids *RaidResultRepository
}

// PoolStats is a point-in-time view of connection usage.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	Acquires int64
}

// Open connects to the database described by cfg.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a Store whose pool answered a ping, or a non-nil error.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool, Raids: NewRaidResultRepository(pool)}, nil
}

// RequireSchema verifies that every raid table exists.
//
// Postcondition: Returns an error wrapping ErrSchemaMissing naming the first
// absent table.
func (s *Store) RequireSchema(ctx context.Context) error {
	for _, table := range schemaTables {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, table).Scan(&exists); err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("%w: table %s", ErrSchemaMissing, table)
		}
	}
	return nil
}

// Check pings the database within timeout and reports pool usage. The stats are
// valid even when the ping fails.
func (s *Store) Check(ctx context.Context, timeout time.Duration) (PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := s.pool.Ping(ctx)
	st := s.pool.Stat()
	return PoolStats{
		Total:    st.TotalConns(),
		Idle:     st.IdleConns(),
		Acquired: st.AcquiredConns(),
		Acquires: st.AcquireCount(),
	}, err
}

// Close releases all pool resources.
func (s *Store) Close() {
	s.pool.Close()
}

// DB returns the underlying pool.
func (s *Store) DB() *pgxpool.Pool {
	return s.pool
}
