package fieldcrypt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncryptedField_RoundTrip(t *testing.T) {
	keys := newTestKeySet(t, "secret")
	day := time.Date(2015, 2, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		typ  Type
		in   any
		want any
	}{
		{"text", Text, "foo", "foo"},
		{"empty text", Text, "", ""},
		{"integer", Integer, 5, int64(5)},
		{"date", Date, day, day},
		{"datetime", DateTime, day.Add(90 * time.Minute), day.Add(90 * time.Minute)},
		{"bytes", Bytes, []byte("raw"), []byte("raw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, err := NewEncryptedField("value", tt.typ, keys)
			require.NoError(t, err)

			stored, err := field.Encode(tt.in)
			require.NoError(t, err)
			require.NotNil(t, stored)

			got, err := field.Decode(stored)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEncryptedField_Null(t *testing.T) {
	field, err := NewEncryptedField("notes", Text, newTestKeySet(t, "secret"))
	require.NoError(t, err)

	var nilString *string
	for _, v := range []any{nil, nilString} {
		stored, err := field.Encode(v)
		require.NoError(t, err)
		require.Nil(t, stored)
	}

	v, err := field.Decode(nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestEncryptedField_NonDeterministic(t *testing.T) {
	field, err := NewEncryptedField("notes", Text, newTestKeySet(t, "secret"))
	require.NoError(t, err)

	a, err := field.Encode("same")
	require.NoError(t, err)
	b, err := field.Encode("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestEncryptedField_InvalidValue(t *testing.T) {
	field, err := NewEncryptedField("age", Integer, newTestKeySet(t, "secret"))
	require.NoError(t, err)

	_, err = field.Encode("five")
	require.ErrorIs(t, err, ErrInvalidValue)
	require.Contains(t, err.Error(), `"age"`)
}

func TestEncryptedField_DecodeFailure(t *testing.T) {
	writer, err := NewEncryptedField("notes", Text, newTestKeySet(t, "key1"))
	require.NoError(t, err)
	stored, err := writer.Encode("foo")
	require.NoError(t, err)

	reader, err := NewEncryptedField("notes", Text, newTestKeySet(t, "key2"))
	require.NoError(t, err)

	_, err = reader.Decode(stored)
	require.ErrorIs(t, err, ErrDecryption)

	_, err = reader.Decode([]byte("plaintext"))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewEncryptedField_ForbiddenConstraints(t *testing.T) {
	keys := newTestKeySet(t, "secret")

	for name, opt := range map[string]FieldOption{
		"primary key": PrimaryKey(),
		"unique":      Unique(),
		"indexed":     Indexed(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewEncryptedField("notes", Text, keys, opt)
			require.ErrorIs(t, err, ErrForbiddenConstraint)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewEncryptedField_DigestOptionsRejected(t *testing.T) {
	keys := newTestKeySet(t, "secret")

	for _, opt := range []FieldOption{UniqueDigest(), IndexedDigest(), WithNormalizer(NormalizeEmail)} {
		_, err := NewEncryptedField("notes", Text, keys, opt)
		require.ErrorIs(t, err, ErrConfiguration)
	}
}

func TestNewEncryptedField_InvalidArguments(t *testing.T) {
	keys := newTestKeySet(t, "secret")

	_, err := NewEncryptedField("bad name", Text, keys)
	require.ErrorIs(t, err, ErrInvalidColumn)

	_, err = NewEncryptedField("notes", nil, keys)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewEncryptedField("notes", Text, nil)
	require.ErrorIs(t, err, ErrNoKeys)
}

func TestEncryptedField_RewritePredicate(t *testing.T) {
	field, err := NewEncryptedField("notes", Text, newTestKeySet(t, "secret"))
	require.NoError(t, err)

	rejected := []Predicate{
		Eq("notes", "foo"),
		Eq("notes", nil),
		In("notes", "foo", "bar"),
		Lt("notes", "foo"),
		Lte("notes", "foo"),
		Gt("notes", "foo"),
		Gte("notes", "foo"),
		Between("notes", "a", "z"),
		Contains("notes", "foo"),
		StartsWith("notes", "foo"),
	}
	for _, p := range rejected {
		t.Run(string(p.Op), func(t *testing.T) {
			_, err := field.RewritePredicate(p)
			require.ErrorIs(t, err, ErrQuery)
			require.ErrorIs(t, err, ErrUnsupportedPredicate)
		})
	}

	rewritten, err := field.RewritePredicate(IsNull("notes"))
	require.NoError(t, err)
	require.Equal(t, IsNull("notes"), rewritten)
}

func TestEncryptedField_Columns(t *testing.T) {
	field, err := NewEncryptedField("notes", Text, newTestKeySet(t, "secret"))
	require.NoError(t, err)

	require.Equal(t, "notes", field.Name())
	require.Equal(t, Text, field.Type())
	require.Equal(t, []string{"notes"}, field.Columns())
	require.Empty(t, field.UniqueColumns())
	require.Empty(t, field.IndexedColumns())

	cols, err := field.EncodeColumns("foo")
	require.NoError(t, err)
	require.Len(t, cols, 1)

	v, err := field.DecodeColumns(cols)
	require.NoError(t, err)
	require.Equal(t, "foo", v)

	_, err = field.DecodeColumns(nil)
	require.Error(t, err)
}
