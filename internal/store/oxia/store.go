package oxia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	oxiaclient "github.com/oxia-db/oxia/oxia"

	"github.com/dray-io/asdelete/internal/store"
	"github.com/dray-io/asdelete/internal/storetime"
)

// Config configures the Oxia store.
type Config struct {
	// ServiceAddress is the Oxia service endpoint (e.g., "localhost:6648").
	ServiceAddress string

	// RequestTimeout is the timeout for individual requests.
	// Default: 30 seconds.
	RequestTimeout time.Duration
}

// client is the subset of oxiaclient.SyncClient used by Store.
type client interface {
	RangeScan(ctx context.Context, minKeyInclusive, maxKeyExclusive string, options ...oxiaclient.RangeScanOption) <-chan oxiaclient.GetResult
	Delete(ctx context.Context, key string, options ...oxiaclient.DeleteOption) error
	Close() error
}

// Store implements store.Store using Oxia.
type Store struct {
	config Config
	dial   func(namespace string) (client, error)

	mu      sync.Mutex
	clients map[string]client
	closed  bool
}

// envelope is the expected shape of a record value.
type envelope struct {
	ExpiresAtMs *int64 `json:"expiresAtMs"`
}

// New creates a new Oxia store. Clients are connected lazily, per namespace.
func New(_ context.Context, cfg Config) (*Store, error) {
	if cfg.ServiceAddress == "" {
		return nil, errors.New("oxia: service address is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	s := &Store{
		config:  cfg,
		clients: make(map[string]client),
	}
	s.dial = s.dialOxia
	return s, nil
}

func (s *Store) dialOxia(namespace string) (client, error) {
	c, err := oxiaclient.NewSyncClient(s.config.ServiceAddress,
		oxiaclient.WithNamespace(namespace),
		oxiaclient.WithRequestTimeout(s.config.RequestTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("oxia: failed to create client: %w", err)
	}
	return c, nil
}

// clientFor returns the client bound to namespace, connecting on first use.
func (s *Store) clientFor(namespace string) (client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrStoreClosed
	}
	if c, ok := s.clients[namespace]; ok {
		return c, nil
	}
	c, err := s.dial(namespace)
	if err != nil {
		return nil, err
	}
	s.clients[namespace] = c
	return c, nil
}

// CollectionPrefix returns the key prefix holding a collection's records.
func CollectionPrefix(collection string) string {
	return "/" + collection + "/"
}

// Scan streams every key under the collection prefix.
func (s *Store) Scan(ctx context.Context, namespace, collection string) iter.Seq2[store.Record, error] {
	return func(yield func(store.Record, error) bool) {
		c, err := s.clientFor(namespace)
		if err != nil {
			yield(store.Record{}, err)
			return
		}

		// Oxia sorts '/' specially: "<prefix>/" bounds the direct children
		// of a prefix ending in '/'.
		prefix := CollectionPrefix(collection)
		scanCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		results := c.RangeScan(scanCtx, prefix, prefix+"/")
		defer drainRangeScan(results)

		for result := range results {
			if result.Err != nil {
				yield(store.Record{}, fmt.Errorf("oxia: scan failed: %w", result.Err))
				return
			}
			rec := store.Record{
				Key: store.Key{
					Namespace:  namespace,
					Collection: collection,
					ID:         []byte(result.Key),
					Name:       strings.TrimPrefix(result.Key, prefix),
				},
				Expiration: expiration(result.Value),
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(store.Record{}, err)
		}
	}
}

// expiration decodes a value's expiry into store time.
func expiration(value []byte) int64 {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil || env.ExpiresAtMs == nil {
		return store.NeverExpires
	}
	return storetime.ToStoreTime(time.UnixMilli(*env.ExpiresAtMs))
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	c, err := s.clientFor(key.Namespace)
	if err != nil {
		return err
	}

	if err := c.Delete(ctx, string(key.ID)); err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return store.ErrKeyNotFound
		}
		return fmt.Errorf("oxia: delete failed: %w", err)
	}
	return nil
}

// Close releases every namespace client.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.clients = nil
	return errors.Join(errs...)
}

func drainRangeScan(results <-chan oxiaclient.GetResult) {
	go func() {
		for range results {
		}
	}()
}

var _ store.Store = (*Store)(nil)
