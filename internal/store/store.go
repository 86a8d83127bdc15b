// Package store defines the Store interface the purge controller scans and
// deletes through, plus the record types it yields.
//
// Backends live in subpackages: aerospike (the default) and oxia. Both
// deliver scan results as a lazy sequence consumed by a single goroutine:
//
//	for rec, err := range st.Scan(ctx, "test", "sessions") {
//	    if err != nil {
//	        return err
//	    }
//	    if rec.Expiration < threshold {
//	        _ = st.Delete(ctx, rec.Key)
//	    }
//	}
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"math"
)

// Common errors returned by Store operations.
var (
	// ErrKeyNotFound is returned by Delete when the record is already gone.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("store: store closed")
)

// NeverExpires is the Expiration of records without a TTL. It compares
// greater than every threshold.
const NeverExpires int64 = math.MaxInt64

// Key references a single record.
type Key struct {
	Namespace  string
	Collection string

	// ID is the backend-native identifier: the Aerospike digest or the
	// full Oxia key.
	ID []byte

	// Name is the human-readable form of the key, when one is known.
	Name string
}

// String returns Name, or the hex-encoded ID when Name is empty.
func (k Key) String() string {
	if k.Name != "" {
		return k.Name
	}
	return hex.EncodeToString(k.ID)
}

// Record is a scan result. Expiration is in store-epoch seconds
// (see package storetime) or NeverExpires.
type Record struct {
	Key        Key
	Expiration int64
}

// ResultError carries a store-level result code alongside the error.
type ResultError struct {
	Op      string // "connect", "scan" or "delete"
	Code    int
	Message string // decoded result code
	Err     error
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("store: %s failed: %s (code %d): %v", e.Op, e.Message, e.Code, e.Err)
}

func (e *ResultError) Unwrap() error {
	return e.Err
}

// ResultMessage returns the decoded result-code message carried by err, or
// err's text when it carries none.
func ResultMessage(err error) string {
	var re *ResultError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

// Store is the collaborator the purge controller works against.
//
// Scan returns every record of the collection exactly once, in no particular
// order. The sequence is lazy, finite and cannot be restarted; an error is
// yielded at most once and ends the sequence. Breaking out of the loop
// releases the scan.
//
// Delete removes a record. Implementations return ErrKeyNotFound when the
// record no longer exists.
type Store interface {
	Scan(ctx context.Context, namespace, collection string) iter.Seq2[Record, error]
	Delete(ctx context.Context, key Key) error
	Close() error
}
