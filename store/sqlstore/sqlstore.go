// Package sqlstore is a database/sql store.Backend for PostgreSQL and MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/ai8future/fieldcrypt"
	"github.com/ai8future/fieldcrypt/store"
)

// Store is a store.Backend over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ store.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New wraps an open database.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects with driver ("postgres", "pgx" or "mysql") and pings the
// database.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(db, dialect, opts...), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateTable(ctx context.Context, spec store.TableSpec) error {
	for _, stmt := range createStatements(s.dialect, spec) {
		s.logger.Debug("executing ddl", slog.String("sql", stmt))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", spec.Name, err)
		}
	}
	return nil
}

// createStatements renders the CREATE TABLE and CREATE INDEX statements.
// Unique and indexed columns get the dialect's KeyType.
func createStatements(d Dialect, spec store.TableSpec) []string {
	defs := []string{fmt.Sprintf("%s %s PRIMARY KEY", store.IDColumn, d.IDType)}
	for _, col := range spec.Columns {
		typ := d.ValueType
		if slices.Contains(spec.Unique, col) || slices.Contains(spec.Indexed, col) {
			typ = d.KeyType
		}
		defs = append(defs, fmt.Sprintf("%s %s", col, typ))
	}
	for _, col := range spec.Unique {
		defs = append(defs, fmt.Sprintf("CONSTRAINT uq_%s_%s UNIQUE (%s)", spec.Name, col, col))
	}

	stmts := []string{fmt.Sprintf("CREATE TABLE %s (%s)", spec.Name, strings.Join(defs, ", "))}
	for _, col := range spec.Indexed {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX ix_%s_%s ON %s (%s)", spec.Name, col, spec.Name, col))
	}
	return stmts
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) error {
	cols := columnNames(row)
	names := append([]string{store.IDColumn}, cols...)
	marks := make([]string, len(names))
	args := make([]any, len(names))
	for i := range names {
		marks[i] = s.dialect.Placeholder(i + 1)
	}
	args[0] = row.ID
	for i, col := range cols {
		args[i+1] = nullable(row.Columns[col])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table string, row store.Row) error {
	cols := columnNames(row)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", col, s.dialect.Placeholder(i+1))
		args = append(args, nullable(row.Columns[col]))
	}
	args = append(args, row.ID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		table, strings.Join(sets, ", "), store.IDColumn, s.dialect.Placeholder(len(cols)+1))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, preds []fieldcrypt.Predicate) ([]store.Row, error) {
	query, args, err := s.selectQuery(table, preds)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for rows.Next() {
		values := make([][]byte, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := store.Row{Columns: make(map[string][]byte, len(names)-1)}
		for i, name := range names {
			if name == store.IDColumn {
				row.ID = string(values[i])
				continue
			}
			row.Columns[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// selectQuery renders preds, which must already be rewritten by their codecs.
func (s *Store) selectQuery(table string, preds []fieldcrypt.Predicate) (string, []any, error) {
	query := "SELECT * FROM " + table
	if len(preds) == 0 {
		return query, nil, nil
	}

	var (
		conds []string
		args  []any
	)
	for _, p := range preds {
		if !p.IsEquality() {
			return "", nil, fmt.Errorf("%w: sqlstore cannot evaluate %s", fieldcrypt.ErrUnsupportedPredicate, p.Op)
		}
		cond, err := p.Condition(s.dialect.Placeholder, len(args)+1)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond.SQL)
		args = append(args, cond.Args...)
	}
	return query + " WHERE " + strings.Join(conds, " AND "), args, nil
}

// columnNames returns the row's columns in a stable order.
func columnNames(row store.Row) []string {
	cols := make([]string, 0, len(row.Columns))
	for col := range row.Columns {
		cols = append(cols, col)
	}
	slices.Sort(cols)
	return cols
}

// nullable turns a nil slice into an untyped nil so every driver sends NULL.
func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

// mapError translates driver unique-violation errors to store.ErrUniqueViolation.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrUniqueViolation, pqErr.Constraint)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrUniqueViolation, pgErr.ConstraintName)
	}

	// Check for duplicate entry error (MySQL error number 1062)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return fmt.Errorf("%w: %s", store.ErrUniqueViolation, mysqlErr.Message)
	}

	return err
}
