// Package transport defines the capability interface shared by the two paths
// into the hosted database: the direct Postgres pool and the PostgREST API.
//
// Rows cross the boundary as raw JSON objects. The Postgres path renders rows
// with to_jsonb and the REST path receives JSON natively, so callers decode
// into their own record types the same way regardless of which path served them.
package transport

import (
	"context"
	"encoding/json"
	"errors"
)

// Mode names a transport.
type Mode string

const (
	// ModeSDK is the primary path: a direct connection to Postgres.
	ModeSDK Mode = "sdk"
	// ModeAPI is the fallback path: the hosted REST endpoint.
	ModeAPI Mode = "api"
)

// ErrNotFound is returned by SelectOne, Update and Delete when no row matches.
var ErrNotFound = errors.New("transport: not found")

// ErrInvalidInput is returned when the database rejects a value as
// malformed for its column type, such as an id that is not a uuid.
var ErrInvalidInput = errors.New("transport: invalid input")

// CodeInvalidText is the SQLSTATE invalid_text_representation. Both paths
// report it, and both map it to ErrInvalidInput.
const CodeInvalidText = "22P02"

// Transport is the set of operations the entity layer needs from a database path.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Mode reports which path this is.
	Mode() Mode

	// Select returns every row of table matching q.
	Select(ctx context.Context, table string, q Query) ([]json.RawMessage, error)

	// SelectOne returns the first row matching q, or ErrNotFound.
	SelectOne(ctx context.Context, table string, q Query) (json.RawMessage, error)

	// Count returns the number of rows in table. Used as the cheapest liveness probe.
	Count(ctx context.Context, table string) (int64, error)

	// Insert writes row (a JSON object) and returns the stored row including
	// server-generated columns.
	Insert(ctx context.Context, table string, row json.RawMessage) (json.RawMessage, error)

	// Update applies patch (a JSON object of column values) to the row with the
	// given id and returns the updated row.
	Update(ctx context.Context, table, id string, patch json.RawMessage) (json.RawMessage, error)

	// Delete removes the row with the given id.
	Delete(ctx context.Context, table, id string) error

	// TestConnection issues a minimal read and reports whether it succeeded.
	TestConnection(ctx context.Context) bool
}
