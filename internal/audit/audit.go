// Package audit records every record the purge deleted.
//
// A Sink receives one Event per successful delete. Sinks buffer as they see
// fit; Flush is called at the end of every run and Close once on shutdown.
// Audit failures are reported to the caller, which logs them and carries on:
// a purge never stops because its trail could not be written.
package audit

import (
	"context"
	"errors"
	"time"
)

// Event describes one deleted record.
type Event struct {
	RunID      string    `json:"runId"`
	Namespace  string    `json:"namespace"`
	Collection string    `json:"set"`
	Key        string    `json:"key"`
	Expiration time.Time `json:"expiration"`
	DeletedAt  time.Time `json:"deletedAt"`
}

// Sink consumes deletion events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Flush(context.Context) error         { return nil }
func (Nop) Close(context.Context) error         { return nil }

// Multi fans events out to several sinks. Every sink is called even when an
// earlier one fails; the errors are joined.
type Multi []Sink

// NewMulti returns Nop for no sinks, the sink itself for one, and a Multi
// otherwise.
func NewMulti(sinks ...Sink) Sink {
	switch len(sinks) {
	case 0:
		return Nop{}
	case 1:
		return sinks[0]
	default:
		return Multi(sinks)
	}
}

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = Nop{}
	_ Sink = Multi(nil)
)
