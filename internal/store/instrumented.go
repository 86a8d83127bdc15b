package store

import (
	"context"
	"errors"
	"iter"
	"time"
)

// MetricsRecorder records store operation metrics.
// This allows the store package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordScan(durationSeconds float64, records int64, success bool)
	RecordDelete(durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, operations pass through directly.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

// Scan records one observation when the sequence ends, covering the whole
// scan including the time spent in the consumer's loop body.
func (s *InstrumentedStore) Scan(ctx context.Context, namespace, collection string) iter.Seq2[Record, error] {
	inner := s.store.Scan(ctx, namespace, collection)
	if s.metrics == nil {
		return inner
	}
	return func(yield func(Record, error) bool) {
		start := time.Now()
		var n int64
		success := true
		for rec, err := range inner {
			if err != nil {
				success = false
			} else {
				n++
			}
			if !yield(rec, err) {
				break
			}
		}
		s.metrics.RecordScan(time.Since(start).Seconds(), n, success)
	}
}

// Delete removes a record. A missing key counts as a successful delete.
func (s *InstrumentedStore) Delete(ctx context.Context, key Key) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordDelete(time.Since(start).Seconds(), err == nil || errors.Is(err, ErrKeyNotFound))
	}
	return err
}

// Close releases resources held by the store.
func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

// Ensure InstrumentedStore implements Store.
var _ Store = (*InstrumentedStore)(nil)
