package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai8future/fieldcrypt"
)

func newField(t *testing.T, secret string) *fieldcrypt.DualField {
	t.Helper()
	keys, err := fieldcrypt.NewKeySet([][]byte{[]byte(secret)})
	require.NoError(t, err)
	field, err := fieldcrypt.NewDualField("email", fieldcrypt.Email, keys)
	require.NoError(t, err)
	return field
}

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("fieldcrypt", reg)

	m.OperationsTotal.WithLabelValues("email", OpEncode, StatusSuccess).Inc()
	m.OperationDuration.WithLabelValues("email", OpEncode).Observe(0.001)

	count, err := testutil.GatherAndCount(reg, "fieldcrypt_operations_total", "fieldcrypt_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New("fieldcrypt", reg)
	assert.Panics(t, func() { New("fieldcrypt", reg) })
}

func TestInstrument_CountsOperations(t *testing.T) {
	m := New("fieldcrypt", prometheus.NewRegistry())
	codec := m.Instrument(newField(t, "secret"))

	require.Equal(t, "email", codec.Name())
	require.Equal(t, []string{"email_encrypted", "email_idx"}, codec.Columns())

	cols, err := codec.EncodeColumns("a@b.c")
	require.NoError(t, err)
	_, err = codec.DecodeColumns(cols)
	require.NoError(t, err)
	_, err = codec.RewritePredicate(fieldcrypt.Eq("email", "a@b.c"))
	require.NoError(t, err)
	_, err = codec.RewritePredicate(fieldcrypt.Gt("email", "a"))
	require.ErrorIs(t, err, fieldcrypt.ErrQuery)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("email", OpEncode, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("email", OpDecode, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("email", OpRewrite, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("email", OpRewrite, StatusRejected)))
}

func TestInstrument_DecryptionFailure(t *testing.T) {
	m := New("fieldcrypt", prometheus.NewRegistry())

	cols, err := newField(t, "key1").EncodeColumns("a@b.c")
	require.NoError(t, err)

	codec := m.Instrument(newField(t, "key2"))
	_, err = codec.DecodeColumns(cols)
	require.ErrorIs(t, err, fieldcrypt.ErrDecryption)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("email", OpDecode, StatusDecrypt)))
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusSuccess},
		{fieldcrypt.ErrUnsupportedPredicate, StatusRejected},
		{fieldcrypt.ErrTokenTampered, StatusDecrypt},
		{fmt.Errorf("field %q: %w", "age", fieldcrypt.ErrInvalidValue), StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, status(tt.err))
		})
	}
}
