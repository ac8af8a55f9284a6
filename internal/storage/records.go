package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/vitrine/internal/transport"
)

// Select returns rows of table matching q as JSON objects.
func (db *DB) Select(ctx context.Context, table string, q transport.Query) ([]json.RawMessage, error) {
	sql, args, err := buildSelect(table, q)
	if err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: select %s: %w", table, classify(err))
	}
	out, err := pgx.CollectRows(rows, scanJSON)
	if err != nil {
		return nil, fmt.Errorf("storage: select %s: %w", table, classify(err))
	}
	if out == nil {
		out = []json.RawMessage{}
	}
	return out, nil
}

// SelectOne returns the first row matching q, or ErrNotFound.
func (db *DB) SelectOne(ctx context.Context, table string, q transport.Query) (json.RawMessage, error) {
	rows, err := db.Select(ctx, table, q.WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("storage: select one %s: %w", table, ErrNotFound)
	}
	return rows[0], nil
}

// Count returns the number of rows in table.
func (db *DB) Count(ctx context.Context, table string) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int64
	if err := db.pool.QueryRow(ctx, "SELECT count(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count %s: %w", table, classify(err))
	}
	return n, nil
}

// Insert writes row and returns it with server-generated columns filled in.
func (db *DB) Insert(ctx context.Context, table string, row json.RawMessage) (json.RawMessage, error) {
	sql, args, err := buildInsert(table, row)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := db.pool.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("storage: insert %s: %w", table, classify(err))
	}
	return json.RawMessage(raw), nil
}

// Update applies patch to the row with the given id.
func (db *DB) Update(ctx context.Context, table, id string, patch json.RawMessage) (json.RawMessage, error) {
	sql, args, err := buildUpdate(table, id, patch)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = db.pool.QueryRow(ctx, sql, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("storage: update %s %s: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: update %s: %w", table, classify(err))
	}
	return json.RawMessage(raw), nil
}

// Delete removes the row with the given id.
func (db *DB) Delete(ctx context.Context, table, id string) error {
	sql, args, err := buildDelete(table, id)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", table, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: delete %s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// TestConnection reports whether a count against the agents table succeeds.
func (db *DB) TestConnection(ctx context.Context) bool {
	_, err := db.Count(ctx, "agents")
	return err == nil
}

func scanJSON(row pgx.CollectableRow) (json.RawMessage, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
