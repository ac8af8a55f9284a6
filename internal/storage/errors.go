package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ashita-ai/vitrine/internal/transport"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = transport.ErrNotFound

// classify marks malformed-value errors with transport.ErrInvalidInput.
func classify(err error) error {
	if ErrorCode(err) == transport.CodeInvalidText {
		return fmt.Errorf("%w: %w", transport.ErrInvalidInput, err)
	}
	return err
}

// ErrorCode returns the SQLSTATE of a Postgres error, or "" if err did not come from the server.
func ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
