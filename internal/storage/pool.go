// Package storage is the primary transport: a pgx connection pool pointed at
// the hosted Postgres project.
//
// The pool connects lazily. A hosted database that has auto-paused must not
// stop the process from starting; the connection manager decides at call time
// whether this path or the REST fallback serves a request.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashita-ai/vitrine/internal/telemetry"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// DB wraps a pgxpool.Pool and implements transport.Transport.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ transport.Transport = (*DB)(nil)

// New creates a DB. It validates the DSN and attempts one ping, but a failed
// ping is only logged: the pool keeps retrying on demand.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnIdleTime = time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("storage: initial ping failed, continuing with lazy connections", "error", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Mode reports transport.ModeSDK.
func (db *DB) Mode() transport.Mode {
	return transport.ModeSDK
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// RegisterPoolMetrics exposes pool occupancy as OTEL gauges. Call after telemetry.Init.
func (db *DB) RegisterPoolMetrics() error {
	return telemetry.RegisterGauges(telemetry.Meter("vitrine/storage"),
		telemetry.Gauge{
			Name:        "vitrine.db.pool.acquired",
			Description: "Connections currently checked out of the pool",
			Observe:     func() int64 { return int64(db.pool.Stat().AcquiredConns()) },
		},
		telemetry.Gauge{
			Name:        "vitrine.db.pool.total",
			Description: "Connections open in the pool",
			Observe:     func() int64 { return int64(db.pool.Stat().TotalConns()) },
		},
	)
}
