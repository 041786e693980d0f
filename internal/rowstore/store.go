// Package rowstore is the row-oriented table storage the application persists into. The
// production backend is a Google Sheets spreadsheet; a SQL and an in-memory backend exist for
// local development and tests. Tables have a header row which is never returned as data.
package rowstore

import (
	"context"
	"errors"
	"fmt"
)

const (
	TableEvents         = "Events"
	TableRegistrations  = "Registrations"
	TableUsers          = "Users"
	TableRemovalHistory = "RemovalHistory"
)

var ErrRowOutOfRange = errors.New("row index out of range")

// Store reads and writes ordered rows of string cells. Row indexes are 0-based and count data
// rows only. There are no transactions and no row locks.
type Store interface {
	// EnsureTable creates the table (or its header row) if it does not exist yet.
	EnsureTable(ctx context.Context, table string, header []string) error
	ReadRange(ctx context.Context, table string) ([][]string, error)
	AppendRow(ctx context.Context, table string, row []string) error
	AppendRows(ctx context.Context, table string, rows [][]string) error
	UpdateRange(ctx context.Context, table string, rowIndex int, values []string) error
	DeleteRow(ctx context.Context, table string, rowIndex int) error
}

func outOfRange(table string, idx, n int) error {
	return fmt.Errorf("%s row %d of %d: %w", table, idx, n, ErrRowOutOfRange)
}
