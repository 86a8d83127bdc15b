package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PurgeMetrics holds metrics describing purge runs.
type PurgeMetrics struct {
	// RecordsTotal counts scanned records by outcome.
	// Labels: namespace, set, outcome (kept, deleted, skipped, failed)
	RecordsTotal *prometheus.CounterVec

	// RunsTotal counts finished runs by status (success, failure).
	RunsTotal *prometheus.CounterVec

	// RunDuration tracks wall-clock run duration in seconds.
	RunDuration *prometheus.HistogramVec

	// Threshold is the store-epoch deletion threshold of the last run.
	Threshold *prometheus.GaugeVec

	// LastSuccess is the Unix time of the last successful run.
	LastSuccess *prometheus.GaugeVec
}

// DefaultRunDurationBuckets span quick dry runs to multi-hour scans.
var DefaultRunDurationBuckets = []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200, 14400}

// NewPurgeMetricsWithRegistry creates purge metrics registered with reg.
func NewPurgeMetricsWithRegistry(reg prometheus.Registerer) *PurgeMetrics {
	m := &PurgeMetrics{
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "purge",
				Name:      "records_total",
				Help:      "Scanned records by outcome (kept, deleted, skipped over budget, failed delete).",
			},
			[]string{"namespace", "set", "outcome"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "purge",
				Name:      "runs_total",
				Help:      "Finished purge runs by status.",
			},
			[]string{"namespace", "set", "status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "purge",
				Name:      "run_duration_seconds",
				Help:      "Purge run duration in seconds.",
				Buckets:   DefaultRunDurationBuckets,
			},
			[]string{"namespace", "set", "status"},
		),
		Threshold: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "purge",
				Name:      "threshold_store_seconds",
				Help:      "Deletion threshold of the last run, in seconds since 2010-01-01T00:00:00Z.",
			},
			[]string{"namespace", "set"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "purge",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful purge run.",
			},
			[]string{"namespace", "set"},
		),
	}

	reg.MustRegister(m.RecordsTotal, m.RunsTotal, m.RunDuration, m.Threshold, m.LastSuccess)
	return m
}

// RecordOutcome counts one scanned record.
func (m *PurgeMetrics) RecordOutcome(ns, set, outcome string) {
	m.RecordsTotal.WithLabelValues(ns, set, outcome).Inc()
}

// RecordThreshold sets the threshold gauge.
func (m *PurgeMetrics) RecordThreshold(ns, set string, threshold int64) {
	m.Threshold.WithLabelValues(ns, set).Set(float64(threshold))
}

// RecordRun records a finished run.
func (m *PurgeMetrics) RecordRun(ns, set string, durationSeconds float64, success bool, finishedUnix int64) {
	status := StatusFailure
	if success {
		status = StatusSuccess
		m.LastSuccess.WithLabelValues(ns, set).Set(float64(finishedUnix))
	}
	m.RunsTotal.WithLabelValues(ns, set, status).Inc()
	m.RunDuration.WithLabelValues(ns, set, status).Observe(durationSeconds)
}
