// Package metrics instruments fieldcrypt codecs with Prometheus metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ai8future/fieldcrypt"
)

// Operation label values.
const (
	OpEncode  = "encode"
	OpDecode  = "decode"
	OpRewrite = "rewrite"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"        // ErrQuery
	StatusDecrypt  = "decryption_error" // ErrDecryption
	StatusError    = "error"
)

// Metrics holds the codec collectors registered under one namespace.
type Metrics struct {
	// OperationsTotal counts codec operations by field, operation and status.
	OperationsTotal *prometheus.CounterVec
	// OperationDuration tracks codec operation latency in seconds.
	OperationDuration *prometheus.HistogramVec
}

// New registers the codec collectors with reg. Registering the same
// namespace twice on one registerer panics, as promauto does.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total field codec operations by field, operation and status",
			},
			[]string{"field", "operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Field codec operation duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"field", "operation"},
		),
	}
}

// Instrument wraps codec so every encode, decode and predicate rewrite is
// counted and timed. Values and digests never reach a label.
func (m *Metrics) Instrument(codec fieldcrypt.Codec) fieldcrypt.Codec {
	return &instrumentedCodec{Codec: codec, metrics: m}
}

func (m *Metrics) observe(field, operation string, start time.Time, err error) {
	m.OperationsTotal.WithLabelValues(field, operation, status(err)).Inc()
	m.OperationDuration.WithLabelValues(field, operation).Observe(time.Since(start).Seconds())
}

func status(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, fieldcrypt.ErrQuery):
		return StatusRejected
	case errors.Is(err, fieldcrypt.ErrDecryption):
		return StatusDecrypt
	default:
		return StatusError
	}
}

// instrumentedCodec decorates a Codec with metrics recording.
type instrumentedCodec struct {
	fieldcrypt.Codec
	metrics *Metrics
}

func (c *instrumentedCodec) EncodeColumns(v any) ([][]byte, error) {
	start := time.Now()
	cols, err := c.Codec.EncodeColumns(v)
	c.metrics.observe(c.Name(), OpEncode, start, err)
	return cols, err
}

func (c *instrumentedCodec) DecodeColumns(cols [][]byte) (any, error) {
	start := time.Now()
	v, err := c.Codec.DecodeColumns(cols)
	c.metrics.observe(c.Name(), OpDecode, start, err)
	return v, err
}

func (c *instrumentedCodec) RewritePredicate(p fieldcrypt.Predicate) (fieldcrypt.Predicate, error) {
	start := time.Now()
	rewritten, err := c.Codec.RewritePredicate(p)
	c.metrics.observe(c.Name(), OpRewrite, start, err)
	return rewritten, err
}
