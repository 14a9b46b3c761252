// Package remote defines the generic row-oriented backend the sync
// core writes against, and a SQLite-backed implementation the shell
// and integration tests run on.
//
// The core never assumes cross-row transactions: every write is
// idempotent-enough on its own (inserts produce fresh server ids,
// updates and deletes are scoped by a where clause) that replaying an
// operation after a crash is safe.
package remote

import (
	"context"
	"fmt"
)

// Row is a flat column-name to value mapping. Values round-trip
// through JSON, so numbers decode as float64 and ids as strings.
type Row map[string]any

// Store is the remote table store contract.
//
// Errors are returned, never panicked; callers in the logging engine
// additionally recover at every call boundary because third-party
// backends have been observed to panic on malformed input.
type Store interface {
	// Insert appends rows to table and returns them with
	// server-assigned "id" columns. Returned rows echo any
	// client-supplied columns (including correlation refs).
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)

	// Update applies patch to every row matching where.
	Update(ctx context.Context, table string, patch, where Row) error

	// Delete removes every row matching where.
	Delete(ctx context.Context, table string, where Row) error

	// Select returns all rows matching filter. A nil filter matches
	// every row in the table.
	Select(ctx context.Context, table string, filter Row) ([]Row, error)
}

// Error is a write rejected by the backend, as opposed to a transport
// failure reaching it. Both are retried the same way by the queue; the
// distinction matters only for diagnostics.
type Error struct {
	Op      string
	Table   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("remote %s on %q: %s", e.Op, e.Table, e.Message)
}

// ID extracts the server-assigned id column from a returned row.
// Returns "" when the backend did not echo one.
func ID(row Row) string {
	if row == nil {
		return ""
	}
	id, _ := row["id"].(string)
	return id
}
