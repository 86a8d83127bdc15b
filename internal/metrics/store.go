package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Store operation label values.
const (
	OpScan   = "scan"
	OpDelete = "delete"
)

// DefaultStoreLatencyBuckets cover single deletes (sub-ms to seconds).
// Whole scans fall into the upper buckets.
var DefaultStoreLatencyBuckets = []float64{
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.5,    // 500ms
	1.0,    // 1s
	5.0,    // 5s
	30.0,   // 30s
	300.0,  // 5m
	3600.0, // 1h
}

// StoreMetrics holds metrics for store operations.
// It implements store.MetricsRecorder.
type StoreMetrics struct {
	// LatencyHistogram tracks operation latencies by operation and status.
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks operations by operation and status.
	RequestsTotal *prometheus.CounterVec

	// ScannedRecords counts records delivered by scans.
	ScannedRecords prometheus.Counter
}

// NewStoreMetricsWithRegistry creates store metrics registered with reg.
func NewStoreMetricsWithRegistry(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		LatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_latency_seconds",
				Help:      "Store operation latency in seconds, broken down by operation type and status.",
				Buckets:   DefaultStoreLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations, broken down by operation type and status.",
			},
			[]string{"operation", "status"},
		),
		ScannedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "scanned_records_total",
				Help:      "Total number of records delivered by scans.",
			},
		),
	}

	reg.MustRegister(m.LatencyHistogram, m.RequestsTotal, m.ScannedRecords)
	return m
}

func (m *StoreMetrics) record(operation string, durationSeconds float64, success bool) {
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordScan records a finished scan.
func (m *StoreMetrics) RecordScan(durationSeconds float64, records int64, success bool) {
	m.record(OpScan, durationSeconds, success)
	m.ScannedRecords.Add(float64(records))
}

// RecordDelete records one delete call.
func (m *StoreMetrics) RecordDelete(durationSeconds float64, success bool) {
	m.record(OpDelete, durationSeconds, success)
}
