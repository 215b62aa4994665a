package cache

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for common cache-layer conditions.
var (
	// ErrTableNotFound indicates the requested remote_table_id has no
	// registered LocalTable.
	ErrTableNotFound = errors.New("cache: table not found")

	// ErrInvalidTTL indicates a TTL value that failed validation (zero or
	// negative).
	ErrInvalidTTL = errors.New("cache: invalid TTL")

	// ErrUnknownResource indicates a refresh() call naming a resource
	// outside {solutions, tables, records, members, teams}.
	ErrUnknownResource = errors.New("cache: unknown refresh resource")

	// ErrClosed indicates an operation attempted after Engine.Close.
	ErrClosed = errors.New("cache: engine closed")
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to a nil-safe form callers can check with errors.Is.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrTableNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
