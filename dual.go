package fieldcrypt

import "fmt"

// Column suffixes for a DualField named "email":
//
//	email_encrypted  ciphertext (value of record)
//	email_idx        digest (equality lookups, optional UNIQUE / index)
const (
	ciphertextSuffix = "_encrypted"
	digestSuffix     = "_idx"
)

// Sealed holds the two stored columns of a DualField value.
// Both are nil for a NULL value.
type Sealed struct {
	Ciphertext []byte // non-deterministic token, decrypted on read
	Digest     []byte // deterministic keyed hash, never decoded
}

// DualField pairs an encrypted column with a deterministic digest column so
// that equality and membership lookups work on otherwise opaque data.
// It is safe for concurrent use.
type DualField struct {
	name          string
	enc           *EncryptedField
	keys          *KeySet
	norm          Normalizer
	uniqueDigest  bool
	indexedDigest bool
}

// NewDualField creates a dual codec for field name holding values of typ.
//
// PrimaryKey, Unique and Indexed target the ciphertext column and fail with
// ErrForbiddenConstraint. Use UniqueDigest and IndexedDigest to constrain or
// index the digest column instead.
func NewDualField(name string, typ Type, keys *KeySet, opts ...FieldOption) (*DualField, error) {
	cfg := &fieldConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	if err := checkField(name, typ, keys); err != nil {
		return nil, err
	}
	return &DualField{
		name:          name,
		enc:           &EncryptedField{name: name + ciphertextSuffix, typ: typ, keys: keys},
		keys:          keys,
		norm:          cfg.normalizer,
		uniqueDigest:  cfg.uniqueDigest,
		indexedDigest: cfg.indexedDigest,
	}, nil
}

func (f *DualField) Name() string { return f.name }

// Type returns the field's value type.
func (f *DualField) Type() Type { return f.enc.typ }

// CiphertextColumn returns the name of the ciphertext column.
func (f *DualField) CiphertextColumn() string { return f.enc.name }

// DigestColumn returns the name of the digest column.
func (f *DualField) DigestColumn() string { return f.name + digestSuffix }

func (f *DualField) Columns() []string {
	return []string{f.CiphertextColumn(), f.DigestColumn()}
}

// Encode encrypts v and digests its canonical form.
// nil yields a Sealed with both columns nil.
func (f *DualField) Encode(v any) (*Sealed, error) {
	if isNull(v) {
		return &Sealed{}, nil
	}
	canonical, err := f.enc.typ.ToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	ciphertext, err := f.keys.Encrypt(canonical)
	if err != nil {
		return nil, err
	}
	digest, err := f.keys.Digest(f.normalize(canonical))
	if err != nil {
		return nil, err
	}
	return &Sealed{Ciphertext: ciphertext, Digest: digest}, nil
}

// Decode returns the value held in ciphertext. The digest plays no part in
// reading; it is accepted only so callers can pass a row through unchanged.
func (f *DualField) Decode(ciphertext, _ []byte) (any, error) {
	return f.enc.Decode(ciphertext)
}

// Digest returns the digest of v, or nil for nil.
func (f *DualField) Digest(v any) ([]byte, error) {
	if isNull(v) {
		return nil, nil
	}
	canonical, err := f.enc.typ.ToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.name, err)
	}
	return f.keys.Digest(f.normalize(canonical))
}

func (f *DualField) EncodeColumns(v any) ([][]byte, error) {
	sealed, err := f.Encode(v)
	if err != nil {
		return nil, err
	}
	return [][]byte{sealed.Ciphertext, sealed.Digest}, nil
}

func (f *DualField) DecodeColumns(cols [][]byte) (any, error) {
	if len(cols) != 2 {
		return nil, fmt.Errorf("field %q: expected 2 columns, got %d", f.name, len(cols))
	}
	return f.Decode(cols[0], cols[1])
}

// RewritePredicate redirects equality and membership lookups to the digest
// column. The digest key is stable across encryption-key rotation, so one
// digest per operand matches rows written under any key. Any other operator
// fails with ErrQuery.
//
//	Eq("email", "a@b.c")      -> Eq("email_idx", d(a@b.c))
//	Eq("email", nil), IsNull  -> IsNull("email_idx")
//	In("email", x, nil, y)    -> In("email_idx", d(x), d(y))
func (f *DualField) RewritePredicate(p Predicate) (Predicate, error) {
	column := f.DigestColumn()

	switch p.Op {
	case OpIsNull:
		return IsNull(column), nil

	case OpEqual:
		if len(p.Values) != 1 {
			return Predicate{}, fmt.Errorf("%w: eq on %q expects 1 value, got %d", ErrQuery, f.name, len(p.Values))
		}
		if isNull(p.Values[0]) {
			return IsNull(column), nil
		}
		digest, err := f.lookupDigest(p.Values[0])
		if err != nil {
			return Predicate{}, err
		}
		return Eq(column, digest), nil

	case OpIn:
		values := make([]any, 0, len(p.Values))
		for _, v := range p.Values {
			if isNull(v) {
				continue // NULL never equals anything
			}
			digest, err := f.lookupDigest(v)
			if err != nil {
				return Predicate{}, err
			}
			values = append(values, digest)
		}
		return In(column, values...), nil

	default:
		return Predicate{}, rejectPredicate(f.name, p)
	}
}

// SearchCondition rewrites p and renders it as a PostgreSQL WHERE fragment.
//
// Example:
//
//	cond, err := field.SearchCondition(fieldcrypt.Eq("email", "alice@example.com"), 1)
//	query := "SELECT email_encrypted FROM users WHERE " + cond.SQL
//	rows, err := db.Query(query, cond.Args...)
func (f *DualField) SearchCondition(p Predicate, paramOffset int) (*SearchCondition, error) {
	rewritten, err := f.RewritePredicate(p)
	if err != nil {
		return nil, err
	}
	return rewritten.Condition(DollarPlaceholder, paramOffset)
}

// UniqueColumns returns the digest column when declared with UniqueDigest.
func (f *DualField) UniqueColumns() []string {
	if f.uniqueDigest {
		return []string{f.DigestColumn()}
	}
	return nil
}

// IndexedColumns returns the digest column when declared with IndexedDigest.
// A unique digest column is indexed by its constraint and is not listed.
func (f *DualField) IndexedColumns() []string {
	if f.indexedDigest && !f.uniqueDigest {
		return []string{f.DigestColumn()}
	}
	return nil
}

func (f *DualField) lookupDigest(v any) ([]byte, error) {
	canonical, err := f.enc.typ.ToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrQuery, f.name, err)
	}
	return f.keys.Digest(f.normalize(canonical))
}

func (f *DualField) normalize(canonical []byte) []byte {
	if f.norm == nil {
		return canonical
	}
	return []byte(f.norm(string(canonical)))
}
