// Package metrics provides Prometheus metrics for purge runs.
//
// This package exposes:
//   - Per-record outcomes (kept, deleted, skipped, failed) by namespace and set
//   - Run counts by status and run duration
//   - The deletion threshold of the last run
//   - Store operation latency (scan, delete) broken down by success/failure
//
// Metrics can be scraped from a dedicated HTTP server on /metrics while a
// run is in progress, and pushed to a Pushgateway when it finishes.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	purgeMetrics := metrics.NewPurgeMetricsWithRegistry(reg)
//	storeMetrics := metrics.NewStoreMetricsWithRegistry(reg)
//
//	st = store.NewInstrumentedStore(st, storeMetrics)
//	ctrl := purge.NewController(st, logger, purge.WithMetrics(purgeMetrics))
//
//	srv := metrics.NewServerWithRegistry(":9145", reg)
//	srv.Start()
//	defer srv.Close()
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const namespace = "asdelete"
