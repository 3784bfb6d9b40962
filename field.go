package fieldcrypt

import (
	"fmt"
	"reflect"
)

// Codec maps one logical field to its stored columns. EncryptedField and
// DualField implement it; a storage layer needs nothing else.
type Codec interface {
	// Name is the logical field name.
	Name() string
	// Columns lists the stored columns in the order used by EncodeColumns.
	Columns() []string
	EncodeColumns(v any) ([][]byte, error)
	DecodeColumns(cols [][]byte) (any, error)
	// RewritePredicate turns a predicate on the logical field into one the
	// store can evaluate, or fails with ErrQuery.
	RewritePredicate(p Predicate) (Predicate, error)
	UniqueColumns() []string
	IndexedColumns() []string
}

// EncryptedField encrypts one logical value into a single ciphertext column.
// Stored values are non-deterministic, so the column cannot be compared,
// sorted, indexed or constrained.
// It is safe for concurrent use.
type EncryptedField struct {
	name string
	typ  Type
	keys *KeySet
}

// NewEncryptedField creates a codec for field name holding values of typ.
// PrimaryKey, Unique and Indexed options fail with ErrForbiddenConstraint.
//
// Lookups on the field fail with ErrQuery, with one exception: IsNull is
// allowed, because NULL is stored unencrypted. Eq(name, nil) is still
// rejected; use IsNull.
func NewEncryptedField(name string, typ Type, keys *KeySet, opts ...FieldOption) (*EncryptedField, error) {
	cfg := &fieldConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	if cfg.uniqueDigest || cfg.indexedDigest || cfg.normalizer != nil {
		return nil, fmt.Errorf("%w: field %q has no digest column", ErrConfiguration, name)
	}
	if err := checkField(name, typ, keys); err != nil {
		return nil, err
	}
	return &EncryptedField{name: name, typ: typ, keys: keys}, nil
}

func checkField(name string, typ Type, keys *KeySet) error {
	if !IsValidColumnName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidColumn, name)
	}
	if typ == nil {
		return fmt.Errorf("%w: field %q has no type", ErrConfiguration, name)
	}
	if keys == nil {
		return fmt.Errorf("%w: field %q", ErrNoKeys, name)
	}
	return nil
}

func (f *EncryptedField) Name() string { return f.name }

// Type returns the field's value type.
func (f *EncryptedField) Type() Type { return f.typ }

func (f *EncryptedField) Columns() []string { return []string{f.name} }

// Encode serializes and encrypts v. nil encodes to nil (NULL).
func (f *EncryptedField) Encode(v any) ([]byte, error) {
	if isNull(v) {
		return nil, nil
	}
	plaintext, err := f.typ.ToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	return f.keys.Encrypt(plaintext)
}

// Decode decrypts and deserializes b. nil decodes to nil.
// Decryption failures are returned unchanged; they are never recoverable here.
func (f *EncryptedField) Decode(b []byte) (any, error) {
	if b == nil {
		return nil, nil
	}
	plaintext, err := f.keys.Decrypt(b)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	v, err := f.typ.FromBytes(plaintext)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	return v, nil
}

func (f *EncryptedField) EncodeColumns(v any) ([][]byte, error) {
	b, err := f.Encode(v)
	if err != nil {
		return nil, err
	}
	return [][]byte{b}, nil
}

func (f *EncryptedField) DecodeColumns(cols [][]byte) (any, error) {
	if len(cols) != 1 {
		return nil, fmt.Errorf("field %q: expected 1 column, got %d", f.name, len(cols))
	}
	return f.Decode(cols[0])
}

// RewritePredicate rejects every comparison with ErrQuery: ciphertext
// cannot be compared, so letting the lookup through would silently return
// wrong results. Only IsNull is passed through, since NULL is stored as is.
func (f *EncryptedField) RewritePredicate(p Predicate) (Predicate, error) {
	if p.Op == OpIsNull {
		return IsNull(f.name), nil
	}
	return Predicate{}, rejectPredicate(f.name, p)
}

// UniqueColumns is always empty for an encrypted field.
func (f *EncryptedField) UniqueColumns() []string { return nil }

// IndexedColumns is always empty for an encrypted field.
func (f *EncryptedField) IndexedColumns() []string { return nil }

// isNull reports whether v is nil, a nil pointer or a nil slice.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
