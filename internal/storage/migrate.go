package storage

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

// RunMigrations applies the .sql files in migrationsFS that have not been
// recorded in schema_migrations, in lexical order. The hosted project normally
// has its schema managed from the provider's dashboard; this runner exists for
// local Postgres and integration tests, and every file is written to be
// idempotent so running it against the hosted project is harmless.
func (db *DB) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	rows, err := db.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "*.sql")
	if err != nil {
		return fmt.Errorf("storage: list migrations: %w", err)
	}
	slices.Sort(names)

	for _, name := range names {
		if slices.Contains(applied, name) {
			db.logger.Debug("storage: migration already applied", "file", name)
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}

		db.logger.Info("storage: running migration", "file", name)
		if _, err := db.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("storage: execute migration %s: %w", name, err)
		}
		if _, err := db.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("storage: record migration %s: %w", name, err)
		}
	}
	return nil
}
