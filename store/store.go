// Package store maps logical records onto encrypted byte rows and routes
// every lookup through the owning field's codec before it reaches a backend.
package store

import (
	"context"
	"errors"

	"github.com/ai8future/fieldcrypt"
)

// IDColumn is the primary key column every table carries. It is the only
// plaintext column and the only one a backend may treat as a primary key.
const IDColumn = "id"

var (
	// ErrUniqueViolation indicates an insert or update collided on a unique column.
	ErrUniqueViolation = errors.New("store: unique constraint violation")

	// ErrNotFound indicates no row matched.
	ErrNotFound = errors.New("store: not found")

	// ErrTableExists indicates CreateTable was called twice for one table.
	ErrTableExists = errors.New("store: table already exists")

	// ErrNoTable indicates an operation on a table that was never created.
	ErrNoTable = errors.New("store: no such table")
)

// TableSpec describes a table's stored columns, excluding IDColumn.
type TableSpec struct {
	Name    string
	Columns []string
	Unique  []string
	Indexed []string
}

// Row is one stored row. A nil column value is NULL.
type Row struct {
	ID      string
	Columns map[string][]byte
}

// Backend stores and filters byte rows. It never sees plaintext: every
// predicate it receives has already been rewritten by a codec and only
// uses Eq, In and IsNull on stored columns or IDColumn.
type Backend interface {
	CreateTable(ctx context.Context, spec TableSpec) error
	Insert(ctx context.Context, table string, row Row) error
	// Update replaces the columns of an existing row; ErrNotFound if absent.
	Update(ctx context.Context, table string, row Row) error
	// Select returns the rows matching every predicate, in insertion order.
	Select(ctx context.Context, table string, preds []fieldcrypt.Predicate) ([]Row, error)
}
