package store_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ai8future/fieldcrypt"
	"github.com/ai8future/fieldcrypt/store"
	"github.com/ai8future/fieldcrypt/store/memstore"
)

func keySet(t *testing.T, materials ...string) *fieldcrypt.KeySet {
	t.Helper()
	ms := make([][]byte, len(materials))
	for i, m := range materials {
		ms[i] = []byte(m)
	}
	keys, err := fieldcrypt.NewKeySet(ms)
	require.NoError(t, err)
	return keys
}

// pinnedKeySet builds a key set whose digest key comes from digest.
func pinnedKeySet(t *testing.T, digest string, materials ...string) *fieldcrypt.KeySet {
	t.Helper()
	ms := make([][]byte, len(materials))
	for i, m := range materials {
		ms[i] = []byte(m)
	}
	keys, err := fieldcrypt.NewKeySet(ms, fieldcrypt.WithDigestKey([]byte(digest)))
	require.NoError(t, err)
	return keys
}

var errUpdateFailed = errors.New("update failed")

// failingUpdates fails every update after the first after ones; a negative
// after never fails.
type failingUpdates struct {
	*memstore.Store
	after int
	seen  int
}

func (f *failingUpdates) Update(ctx context.Context, table string, row store.Row) error {
	if f.after >= 0 && f.seen >= f.after {
		return errUpdateFailed
	}
	f.seen++
	return f.Store.Update(ctx, table, row)
}

// usersTable declares a table with an encrypted "notes" field and a unique
// dual "email" field.
func usersTable(t *testing.T, backend store.Backend, keys *fieldcrypt.KeySet) *store.Table {
	t.Helper()
	notes, err := fieldcrypt.NewEncryptedField("notes", fieldcrypt.Text, keys)
	require.NoError(t, err)
	email, err := fieldcrypt.NewDualField("email", fieldcrypt.Email, keys,
		fieldcrypt.UniqueDigest(),
		fieldcrypt.WithNormalizer(fieldcrypt.NormalizeEmail),
	)
	require.NoError(t, err)

	table, err := store.NewTable("users", backend, []fieldcrypt.Codec{notes, email})
	require.NoError(t, err)
	return table
}

func TestTable_Spec(t *testing.T) {
	table := usersTable(t, memstore.New(), keySet(t, "secret"))

	spec := table.Spec()
	require.Equal(t, "users", spec.Name)
	require.Equal(t, []string{"notes", "email_encrypted", "email_idx"}, spec.Columns)
	require.Equal(t, []string{"email_idx"}, spec.Unique)
	require.Empty(t, spec.Indexed)
}

func TestNewTable_Invalid(t *testing.T) {
	keys := keySet(t, "secret")
	notes, err := fieldcrypt.NewEncryptedField("notes", fieldcrypt.Text, keys)
	require.NoError(t, err)

	_, err = store.NewTable("bad name", memstore.New(), nil)
	require.ErrorIs(t, err, fieldcrypt.ErrInvalidColumn)

	_, err = store.NewTable("users", memstore.New(), []fieldcrypt.Codec{notes, notes})
	require.ErrorIs(t, err, fieldcrypt.ErrConfiguration)

	id, err := fieldcrypt.NewEncryptedField("id", fieldcrypt.Text, keys)
	require.NoError(t, err)
	_, err = store.NewTable("users", memstore.New(), []fieldcrypt.Codec{id})
	require.ErrorIs(t, err, fieldcrypt.ErrConfiguration)

	// "email_encrypted" clashes with the dual field's ciphertext column
	clash, err := fieldcrypt.NewEncryptedField("email_encrypted", fieldcrypt.Text, keys)
	require.NoError(t, err)
	email, err := fieldcrypt.NewDualField("email", fieldcrypt.Email, keys)
	require.NoError(t, err)
	_, err = store.NewTable("users", memstore.New(), []fieldcrypt.Codec{clash, email})
	require.ErrorIs(t, err, fieldcrypt.ErrConfiguration)
}

// A value written through an encrypted field never appears in storage, and
// reads back unchanged.
func TestTable_CiphertextAtRest(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	field, err := fieldcrypt.NewEncryptedField("value", fieldcrypt.Text, keySet(t, "secret"))
	require.NoError(t, err)
	table, err := store.NewTable("records", backend, []fieldcrypt.Codec{field})
	require.NoError(t, err)
	require.NoError(t, table.Create(ctx))

	id, err := table.Insert(ctx, store.Record{Fields: map[string]any{"value": "foo"}})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	raw, ok := backend.Raw("records", id)
	require.True(t, ok)
	stored := raw.Columns["value"]
	require.NotEqual(t, []byte("foo"), stored)

	decoded, err := base64.URLEncoding.DecodeString(string(stored))
	require.NoError(t, err)
	require.False(t, bytes.Contains(decoded, []byte("foo")))

	rec, err := table.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "foo", rec.Fields["value"])
}

func TestTable_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	table := usersTable(t, memstore.New(), keySet(t, "secret"))
	require.NoError(t, table.Create(ctx))

	alice, err := table.Insert(ctx, store.Record{Fields: map[string]any{
		"email": "Alice@Example.com",
		"notes": "likes tea",
	}})
	require.NoError(t, err)
	bob, err := table.Insert(ctx, store.Record{Fields: map[string]any{"email": "bob@example.com"}})
	require.NoError(t, err)
	_, err = table.Insert(ctx, store.Record{Fields: map[string]any{"notes": "anonymous"}})
	require.NoError(t, err)

	recs, err := table.Find(ctx, fieldcrypt.Eq("email", "alice@example.com"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, alice, recs[0].ID)
	require.Equal(t, "Alice@Example.com", recs[0].Fields["email"])
	require.Equal(t, "likes tea", recs[0].Fields["notes"])

	recs, err = table.Find(ctx, fieldcrypt.In("email", "bob@example.com", "carol@example.com", nil))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, bob, recs[0].ID)
	require.Nil(t, recs[0].Fields["notes"])

	recs, err = table.Find(ctx, fieldcrypt.Eq("email", nil))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "anonymous", recs[0].Fields["notes"])

	recs, err = table.Find(ctx, fieldcrypt.IsNull("notes"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, bob, recs[0].ID)

	recs, err = table.Find(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
}

func TestTable_UniqueDigest(t *testing.T) {
	ctx := context.Background()
	table := usersTable(t, memstore.New(), keySet(t, "secret"))
	require.NoError(t, table.Create(ctx))

	_, err := table.Insert(ctx, store.Record{Fields: map[string]any{"email": "foo@example.com"}})
	require.NoError(t, err)

	// Normalised to the same digest
	_, err = table.Insert(ctx, store.Record{Fields: map[string]any{"email": " FOO@example.com"}})
	require.ErrorIs(t, err, store.ErrUniqueViolation)

	// NULL emails never collide
	for i := 0; i < 2; i++ {
		_, err = table.Insert(ctx, store.Record{Fields: map[string]any{"notes": "x"}})
		require.NoError(t, err)
	}
}

func TestTable_RejectedLookups(t *testing.T) {
	ctx := context.Background()
	table := usersTable(t, memstore.New(), keySet(t, "secret"))
	require.NoError(t, table.Create(ctx))

	rejected := []fieldcrypt.Predicate{
		fieldcrypt.Eq("notes", "likes tea"),
		fieldcrypt.In("notes", "a"),
		fieldcrypt.Contains("notes", "tea"),
		fieldcrypt.Gt("email", "a"),
		fieldcrypt.StartsWith("email", "alice"),
		fieldcrypt.Between("email", "a", "z"),
		fieldcrypt.Lt(store.IDColumn, "x"),
		fieldcrypt.Eq("unknown", "x"),
	}
	for _, p := range rejected {
		t.Run(p.String(), func(t *testing.T) {
			_, err := table.Find(ctx, p)
			require.ErrorIs(t, err, fieldcrypt.ErrQuery)
		})
	}
}

func TestTable_UnknownField(t *testing.T) {
	table := usersTable(t, memstore.New(), keySet(t, "secret"))
	require.NoError(t, table.Create(context.Background()))

	_, err := table.Insert(context.Background(), store.Record{Fields: map[string]any{"phone": "555"}})
	require.ErrorIs(t, err, fieldcrypt.ErrConfiguration)
}

func TestTable_Update(t *testing.T) {
	ctx := context.Background()
	table := usersTable(t, memstore.New(), keySet(t, "secret"))
	require.NoError(t, table.Create(ctx))

	id, err := table.Insert(ctx, store.Record{Fields: map[string]any{"email": "a@example.com"}})
	require.NoError(t, err)

	require.NoError(t, table.Update(ctx, store.Record{ID: id, Fields: map[string]any{"email": "b@example.com"}}))

	recs, err := table.Find(ctx, fieldcrypt.Eq("email", "a@example.com"))
	require.NoError(t, err)
	require.Empty(t, recs)

	rec, err := table.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "b@example.com", rec.Fields["email"])

	err = table.Update(ctx, store.Record{Fields: map[string]any{"email": "c@example.com"}})
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = table.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTable_KeyRotation(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	v1 := usersTable(t, backend, keySet(t, "key1"))
	require.NoError(t, v1.Create(ctx))
	id, err := v1.Insert(ctx, store.Record{Fields: map[string]any{"email": "foo@example.com", "notes": "n"}})
	require.NoError(t, err)

	// New primary key, old one retained: old rows still read and match
	v2 := usersTable(t, backend, keySet(t, "key2", "key1"))
	recs, err := v2.Find(ctx, fieldcrypt.Eq("email", "foo@example.com"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, id, recs[0].ID)

	// Before rotation the retired key cannot be dropped
	v2only := usersTable(t, backend, pinnedKeySet(t, "key1", "key2"))
	_, err = v2only.Find(ctx)
	require.ErrorIs(t, err, fieldcrypt.ErrDecryption)

	n, err := v2.Rotate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// key1 survives only as the digest key
	recs, err = v2only.Find(ctx, fieldcrypt.Eq("email", "foo@example.com"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "n", recs[0].Fields["notes"])
}

func TestTable_UniqueDigestAcrossRotation(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	v1 := usersTable(t, backend, keySet(t, "key1"))
	require.NoError(t, v1.Create(ctx))
	_, err := v1.Insert(ctx, store.Record{Fields: map[string]any{"email": "foo@example.com"}})
	require.NoError(t, err)
	_, err = v1.Insert(ctx, store.Record{Fields: map[string]any{"email": "bar@example.com"}})
	require.NoError(t, err)

	v2 := usersTable(t, backend, keySet(t, "key2", "key1"))
	_, err = v2.Insert(ctx, store.Record{Fields: map[string]any{"email": "Foo@Example.com"}})
	require.ErrorIs(t, err, store.ErrUniqueViolation)

	recs, err := v2.Find(ctx, fieldcrypt.Eq("email", "foo@example.com"))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	n, err := v2.Rotate(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Still unique after every row moved to the new key
	_, err = v2.Insert(ctx, store.Record{Fields: map[string]any{"email": "bar@example.com"}})
	require.ErrorIs(t, err, store.ErrUniqueViolation)
}

func TestTable_DedicatedDigestKey(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	v1 := usersTable(t, backend, pinnedKeySet(t, "digest-secret", "key1"))
	require.NoError(t, v1.Create(ctx))
	_, err := v1.Insert(ctx, store.Record{Fields: map[string]any{"email": "foo@example.com", "notes": "n"}})
	require.NoError(t, err)

	v2 := usersTable(t, backend, pinnedKeySet(t, "digest-secret", "key2", "key1"))
	_, err = v2.Insert(ctx, store.Record{Fields: map[string]any{"email": "foo@example.com"}})
	require.ErrorIs(t, err, store.ErrUniqueViolation)

	n, err := v2.Rotate(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// key1 is gone entirely
	v3 := usersTable(t, backend, pinnedKeySet(t, "digest-secret", "key2"))
	recs, err := v3.Find(ctx, fieldcrypt.Eq("email", "foo@example.com"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "n", recs[0].Fields["notes"])

	_, err = v3.Insert(ctx, store.Record{Fields: map[string]any{"email": "foo@example.com"}})
	require.ErrorIs(t, err, store.ErrUniqueViolation)
}

func TestTable_RotatePartialFailure(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	backend := &failingUpdates{Store: mem, after: 1}

	v1 := usersTable(t, backend, keySet(t, "key1"))
	require.NoError(t, v1.Create(ctx))
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := v1.Insert(ctx, store.Record{Fields: map[string]any{"email": email}})
		require.NoError(t, err)
	}

	v2 := usersTable(t, backend, keySet(t, "key2", "key1"))
	n, err := v2.Rotate(ctx)
	require.ErrorIs(t, err, errUpdateFailed)
	require.Equal(t, 1, n)

	// A second run finishes the job
	backend.after = -1
	n, err = v2.Rotate(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestTable_DecryptionFailure(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()

	writer := usersTable(t, backend, keySet(t, "key1"))
	require.NoError(t, writer.Create(ctx))
	_, err := writer.Insert(ctx, store.Record{Fields: map[string]any{"notes": "n"}})
	require.NoError(t, err)

	reader := usersTable(t, backend, keySet(t, "other"))
	_, err = reader.Find(ctx)
	require.ErrorIs(t, err, fieldcrypt.ErrDecryption)
}
