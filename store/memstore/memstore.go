// Package memstore is an in-memory store.Backend. It enforces unique
// columns and evaluates the equality predicates a codec can produce.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ai8future/fieldcrypt"
	"github.com/ai8future/fieldcrypt/store"
)

type table struct {
	spec  store.TableSpec
	rows  map[string]store.Row
	order []string
}

// Store is a goroutine-safe in-memory Backend.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

var _ store.Backend = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) CreateTable(_ context.Context, spec store.TableSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[spec.Name]; ok {
		return fmt.Errorf("%w: %s", store.ErrTableExists, spec.Name)
	}
	s.tables[spec.Name] = &table{spec: spec, rows: make(map[string]store.Row)}
	return nil
}

func (s *Store) Insert(_ context.Context, name string, row store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return err
	}
	if _, ok := t.rows[row.ID]; ok {
		return fmt.Errorf("%w: %s.%s", store.ErrUniqueViolation, name, store.IDColumn)
	}
	if err := t.checkUnique(row); err != nil {
		return err
	}
	t.rows[row.ID] = cloneRow(row)
	t.order = append(t.order, row.ID)
	return nil
}

func (s *Store) Update(_ context.Context, name string, row store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(name)
	if err != nil {
		return err
	}
	if _, ok := t.rows[row.ID]; !ok {
		return store.ErrNotFound
	}
	if err := t.checkUnique(row); err != nil {
		return err
	}
	t.rows[row.ID] = cloneRow(row)
	return nil
}

func (s *Store) Select(_ context.Context, name string, preds []fieldcrypt.Predicate) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for _, id := range t.order {
		row := t.rows[id]
		ok, err := t.matchAll(row, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cloneRow(row))
		}
	}
	return out, nil
}

// Len returns the number of rows in a table, or 0 if it does not exist.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Raw returns a copy of a stored row exactly as the backend holds it.
func (s *Store) Raw(name, id string) (store.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return store.Row{}, false
	}
	row, ok := t.rows[id]
	if !ok {
		return store.Row{}, false
	}
	return cloneRow(row), true
}

func (s *Store) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNoTable, name)
	}
	return t, nil
}

// checkUnique rejects row if any unique column collides with another row.
// NULLs never collide, as in SQL.
func (t *table) checkUnique(row store.Row) error {
	for _, col := range t.spec.Unique {
		v := row.Columns[col]
		if v == nil {
			continue
		}
		for id, other := range t.rows {
			if id != row.ID && bytes.Equal(other.Columns[col], v) {
				return fmt.Errorf("%w: %s.%s", store.ErrUniqueViolation, t.spec.Name, col)
			}
		}
	}
	return nil
}

func (t *table) matchAll(row store.Row, preds []fieldcrypt.Predicate) (bool, error) {
	for _, p := range preds {
		ok, err := t.match(row, p)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (t *table) match(row store.Row, p fieldcrypt.Predicate) (bool, error) {
	var stored []byte
	switch {
	case p.Column == store.IDColumn:
		stored = []byte(row.ID)
	case slices.Contains(t.spec.Columns, p.Column):
		stored = row.Columns[p.Column]
	default:
		return false, fmt.Errorf("memstore: unknown column %q", p.Column)
	}

	switch p.Op {
	case fieldcrypt.OpIsNull:
		return stored == nil, nil
	case fieldcrypt.OpEqual:
		if len(p.Values) != 1 {
			return false, fmt.Errorf("memstore: eq expects 1 value, got %d", len(p.Values))
		}
		if p.Values[0] == nil {
			return stored == nil, nil
		}
		return equal(stored, p.Values[0])
	case fieldcrypt.OpIn:
		for _, v := range p.Values {
			ok, err := equal(stored, v)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: memstore cannot evaluate %s", fieldcrypt.ErrUnsupportedPredicate, p.Op)
	}
}

// equal compares a stored column with a predicate operand. NULL equals nothing.
func equal(stored []byte, v any) (bool, error) {
	if stored == nil || v == nil {
		return false, nil
	}
	switch x := v.(type) {
	case []byte:
		return bytes.Equal(stored, x), nil
	case string:
		return string(stored) == x, nil
	default:
		return false, fmt.Errorf("memstore: cannot compare column with %T", v)
	}
}

func cloneRow(row store.Row) store.Row {
	out := store.Row{ID: row.ID, Columns: make(map[string][]byte, len(row.Columns))}
	for k, v := range row.Columns {
		if v != nil {
			v = bytes.Clone(v)
		}
		out.Columns[k] = v
	}
	return out
}
