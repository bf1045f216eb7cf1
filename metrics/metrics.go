// Package metrics exposes Prometheus collectors for object-storage client operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "s3connector"

// StorageMetrics counts operations, bytes and latency per operation on its
// own registry, so several clients in one process never collide.
type StorageMetrics struct {
	reg     *prometheus.Registry
	ops     *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// New creates StorageMetrics with a fresh registry.
func New() *StorageMetrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *StorageMetrics {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "ops_total",
		Help:      "Total number of object-storage operations by result.",
	}, []string{"op", "result"}) // result = "ok" | "error"
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "bytes_total",
		Help:      "Total bytes transferred by object-storage operations.",
	}, []string{"op"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "op_duration_seconds",
		Help:      "Histogram of object-storage operation durations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	_ = reg.Register(ops)
	_ = reg.Register(bytes)
	_ = reg.Register(latency)

	return &StorageMetrics{
		reg:     reg,
		ops:     ops,
		bytes:   bytes,
		latency: latency,
	}
}

// Observe records one operation.
func (m *StorageMetrics) Observe(op string, n int64, err error, dur time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ops.WithLabelValues(op, result).Inc()
	if n > 0 {
		m.bytes.WithLabelValues(op).Add(float64(n))
	}
	m.latency.WithLabelValues(op).Observe(dur.Seconds())
}

// Registry returns the underlying Prometheus registry.
func (m *StorageMetrics) Registry() *prometheus.Registry {
	return m.reg
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector. The file is replaced atomically.
func (m *StorageMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
