// Package metrics defines Prometheus metrics for shelfstore storage
// operations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for object size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

var (
	// OperationsTotal counts storage operations by backend, operation, and
	// outcome. The status label is "success" or the error kind.
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfstore_operations_total",
			Help: "Storage operations by backend, operation, and status",
		},
		[]string{"backend", "operation", "status"},
	)

	// OperationDuration observes operation latency in seconds.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfstore_operation_duration_seconds",
			Help:    "Storage operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// ObjectSize observes the size of objects written and read.
	ObjectSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfstore_object_size_bytes",
			Help:    "Object content size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"backend", "operation"},
	)

	// BytesWrittenTotal counts object content bytes written per backend.
	BytesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfstore_bytes_written_total",
			Help: "Total object content bytes written",
		},
		[]string{"backend"},
	)

	// BytesReadTotal counts object content bytes read per backend.
	BytesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfstore_bytes_read_total",
			Help: "Total object content bytes read",
		},
		[]string{"backend"},
	)
)

// Register registers all collectors with the default registry. It must be
// called explicitly (typically from main) so registration can be made
// conditional on configuration. Safe to call multiple times; subsequent
// calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OperationsTotal,
			OperationDuration,
			ObjectSize,
			BytesWrittenTotal,
			BytesReadTotal,
		)
	})
}
