package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ai8future/fieldcrypt"
)

// Record is a logical record: field name to plain Go value. A missing or
// nil field is stored as NULL.
type Record struct {
	ID     string
	Fields map[string]any
}

// Table maps records to rows through a fixed set of codecs.
// It is safe for concurrent use if the backend is.
type Table struct {
	name    string
	backend Backend
	codecs  []fieldcrypt.Codec
	byName  map[string]fieldcrypt.Codec
	logger  *slog.Logger
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithLogger attaches a logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) TableOption {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTable declares a table whose fields are encoded by codecs.
func NewTable(name string, backend Backend, codecs []fieldcrypt.Codec, opts ...TableOption) (*Table, error) {
	if !fieldcrypt.IsValidColumnName(name) {
		return nil, fmt.Errorf("%w: table %q", fieldcrypt.ErrInvalidColumn, name)
	}

	t := &Table{
		name:    name,
		backend: backend,
		codecs:  codecs,
		byName:  make(map[string]fieldcrypt.Codec, len(codecs)),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}

	seen := map[string]bool{IDColumn: true}
	for _, c := range codecs {
		if _, dup := t.byName[c.Name()]; dup || c.Name() == IDColumn {
			return nil, fmt.Errorf("%w: duplicate field %q", fieldcrypt.ErrConfiguration, c.Name())
		}
		t.byName[c.Name()] = c
		for _, col := range c.Columns() {
			if seen[col] {
				return nil, fmt.Errorf("%w: column %q declared twice", fieldcrypt.ErrConfiguration, col)
			}
			seen[col] = true
		}
	}
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Spec returns the stored layout of the table.
func (t *Table) Spec() TableSpec {
	spec := TableSpec{Name: t.name}
	for _, c := range t.codecs {
		spec.Columns = append(spec.Columns, c.Columns()...)
		spec.Unique = append(spec.Unique, c.UniqueColumns()...)
		spec.Indexed = append(spec.Indexed, c.IndexedColumns()...)
	}
	return spec
}

// Create creates the table in the backend.
func (t *Table) Create(ctx context.Context) error {
	spec := t.Spec()
	if err := t.backend.CreateTable(ctx, spec); err != nil {
		return err
	}
	t.logger.Info("table created",
		slog.String("table", t.name),
		slog.Int("columns", len(spec.Columns)),
		slog.Any("unique", spec.Unique),
	)
	return nil
}

// Insert encodes rec and stores it under a new UUID, which is returned.
// An ID already set on rec is used instead.
func (t *Table) Insert(ctx context.Context, rec Record) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	row, err := t.encode(id, rec.Fields)
	if err != nil {
		return "", err
	}
	if err := t.backend.Insert(ctx, t.name, row); err != nil {
		return "", err
	}
	t.logger.Debug("record inserted", slog.String("table", t.name), slog.String("id", id))
	return id, nil
}

// Update re-encodes every field of rec and replaces the stored row.
func (t *Table) Update(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: record has no id", ErrNotFound)
	}
	row, err := t.encode(rec.ID, rec.Fields)
	if err != nil {
		return err
	}
	return t.backend.Update(ctx, t.name, row)
}

// Get returns the record stored under id.
func (t *Table) Get(ctx context.Context, id string) (Record, error) {
	recs, err := t.Find(ctx, fieldcrypt.Eq(IDColumn, id))
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

// Find returns the records matching every predicate. Each predicate names a
// logical field (or IDColumn) and is rewritten by that field's codec first;
// a predicate the codec cannot answer fails with fieldcrypt.ErrQuery and
// never reaches the backend.
func (t *Table) Find(ctx context.Context, preds ...fieldcrypt.Predicate) ([]Record, error) {
	rewritten := make([]fieldcrypt.Predicate, len(preds))
	for i, p := range preds {
		rp, err := t.rewrite(p)
		if err != nil {
			t.logger.Warn("lookup rejected",
				slog.String("table", t.name),
				slog.String("field", p.Column),
				slog.String("op", string(p.Op)),
			)
			return nil, err
		}
		rewritten[i] = rp
	}

	rows, err := t.backend.Select(ctx, t.name, rewritten)
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := t.decode(row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Rotate re-encodes every stored row under the primary key and returns the
// number of rows rewritten. Run it after prepending a new key, before the
// old one is dropped. On failure the count covers the rows already
// rewritten; running Rotate again is safe.
func (t *Table) Rotate(ctx context.Context) (int, error) {
	recs, err := t.Find(ctx)
	if err != nil {
		return 0, err
	}
	for i, rec := range recs {
		if err := t.Update(ctx, rec); err != nil {
			t.logger.Error("table rotation stopped",
				slog.String("table", t.name),
				slog.String("id", rec.ID),
				slog.Int("rows", i),
				slog.Any("error", err),
			)
			return i, fmt.Errorf("rotate %s/%s: %w", t.name, rec.ID, err)
		}
	}
	t.logger.Info("table rotated", slog.String("table", t.name), slog.Int("rows", len(recs)))
	return len(recs), nil
}

func (t *Table) rewrite(p fieldcrypt.Predicate) (fieldcrypt.Predicate, error) {
	if p.Column == IDColumn {
		if !p.IsEquality() {
			return fieldcrypt.Predicate{}, fmt.Errorf("%w: %s lookup on %q", fieldcrypt.ErrUnsupportedPredicate, p.Op, IDColumn)
		}
		return p, nil
	}
	codec, ok := t.byName[p.Column]
	if !ok {
		return fieldcrypt.Predicate{}, fmt.Errorf("%w: unknown field %q", fieldcrypt.ErrQuery, p.Column)
	}
	return codec.RewritePredicate(p)
}

func (t *Table) encode(id string, fields map[string]any) (Row, error) {
	for name := range fields {
		if _, ok := t.byName[name]; !ok {
			return Row{}, fmt.Errorf("%w: unknown field %q", fieldcrypt.ErrConfiguration, name)
		}
	}

	row := Row{ID: id, Columns: make(map[string][]byte)}
	for _, c := range t.codecs {
		values, err := c.EncodeColumns(fields[c.Name()])
		if err != nil {
			return Row{}, err
		}
		for i, col := range c.Columns() {
			row.Columns[col] = values[i]
		}
	}
	return row, nil
}

func (t *Table) decode(row Row) (Record, error) {
	rec := Record{ID: row.ID, Fields: make(map[string]any, len(t.codecs))}
	for _, c := range t.codecs {
		cols := c.Columns()
		values := make([][]byte, len(cols))
		for i, col := range cols {
			values[i] = row.Columns[col]
		}
		v, err := c.DecodeColumns(values)
		if err != nil {
			t.logger.Error("decode failed",
				slog.String("table", t.name),
				slog.String("id", row.ID),
				slog.String("field", c.Name()),
			)
			return Record{}, err
		}
		rec.Fields[c.Name()] = v
	}
	return rec, nil
}
