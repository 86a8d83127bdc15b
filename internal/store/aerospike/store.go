// Package aerospike implements the Store interface using the Aerospike Go client.
//
// Scans are issued with ScanAll over every node in the cluster and request
// record metadata only; the client's remaining-TTL is converted back to
// the server's store-epoch void time.
package aerospike

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"sync"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"

	"github.com/dray-io/asdelete/internal/store"
	"github.com/dray-io/asdelete/internal/storetime"
)

// Config configures the Aerospike store.
type Config struct {
	// Host is a seed node address.
	Host string

	// Port is the seed node service port (usually 3000).
	Port int

	// User and Password enable security-enabled clusters. Optional.
	User     string
	Password string

	// Timeout bounds the initial cluster connection.
	// Default: 30 seconds.
	Timeout time.Duration

	// SocketTimeout bounds each scan or delete round trip. 0 uses the client default.
	SocketTimeout time.Duration

	// RecordsPerSecond throttles the scan on each node. 0 means unthrottled.
	RecordsPerSecond int

	// MaxConcurrentNodes limits how many nodes are scanned in parallel.
	// 0 scans all nodes in parallel.
	MaxConcurrentNodes int
}

// client is the subset of the Aerospike client used by Store.
type client interface {
	scanAll(policy *as.ScanPolicy, namespace, setName string) (<-chan *as.Result, func(), as.Error)
	delete(policy *as.WritePolicy, key *as.Key) (bool, as.Error)
	close()
}

// clusterClient adapts *as.Client to client.
type clusterClient struct {
	c *as.Client
}

func (c clusterClient) scanAll(policy *as.ScanPolicy, namespace, setName string) (<-chan *as.Result, func(), as.Error) {
	rs, err := c.c.ScanAll(policy, namespace, setName)
	if err != nil {
		return nil, nil, err
	}
	return rs.Results(), func() { _ = rs.Close() }, nil
}

func (c clusterClient) delete(policy *as.WritePolicy, key *as.Key) (bool, as.Error) {
	return c.c.Delete(policy, key)
}

func (c clusterClient) close() {
	c.c.Close()
}

// Store implements store.Store using Aerospike.
type Store struct {
	client client
	config Config
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// New connects to the cluster reachable through cfg.Host:cfg.Port.
func New(_ context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("aerospike: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("aerospike: invalid port %d", cfg.Port)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	policy := as.NewClientPolicy()
	policy.Timeout = cfg.Timeout
	if cfg.User != "" {
		policy.User = cfg.User
		policy.Password = cfg.Password
	}

	c, aerr := as.NewClientWithPolicy(policy, cfg.Host, cfg.Port)
	if aerr != nil {
		return nil, wrapError("connect", aerr)
	}

	return newWithClient(clusterClient{c: c}, cfg), nil
}

func newWithClient(c client, cfg Config) *Store {
	return &Store{
		client: c,
		config: cfg,
		now:    time.Now,
	}
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

func (s *Store) scanPolicy() *as.ScanPolicy {
	policy := as.NewScanPolicy()
	policy.IncludeBinData = false
	policy.RecordsPerSecond = s.config.RecordsPerSecond
	policy.MaxConcurrentNodes = s.config.MaxConcurrentNodes
	if s.config.SocketTimeout > 0 {
		policy.SocketTimeout = s.config.SocketTimeout
	}
	return policy
}

// Scan streams every record of namespace/collection. Results come off the
// recordset's single channel, so records are yielded one at a time.
func (s *Store) Scan(ctx context.Context, namespace, collection string) iter.Seq2[store.Record, error] {
	return func(yield func(store.Record, error) bool) {
		if err := s.checkClosed(); err != nil {
			yield(store.Record{}, err)
			return
		}

		results, closeScan, aerr := s.client.scanAll(s.scanPolicy(), namespace, collection)
		if aerr != nil {
			yield(store.Record{}, wrapError("scan", aerr))
			return
		}
		defer closeScan()

		for {
			var res *as.Result
			var ok bool
			select {
			case <-ctx.Done():
				yield(store.Record{}, ctx.Err())
				return
			case res, ok = <-results:
			}
			if !ok {
				return
			}
			if res.Err != nil {
				yield(store.Record{}, wrapError("scan", res.Err))
				return
			}
			if !yield(s.toRecord(namespace, collection, res.Record), nil) {
				return
			}
		}
	}
}

// toRecord converts the client's remaining TTL into store-epoch void time.
func (s *Store) toRecord(namespace, collection string, rec *as.Record) store.Record {
	key := store.Key{
		Namespace:  namespace,
		Collection: collection,
		ID:         rec.Key.Digest(),
	}
	if v := rec.Key.Value(); v != nil {
		key.Name = v.String()
	}
	return store.Record{
		Key:        key,
		Expiration: voidTime(rec.Expiration, s.now()),
	}
}

// voidTime maps a TTL in seconds to store time. math.MaxUint32 is the
// client's marker for records that never expire.
func voidTime(ttl uint32, now time.Time) int64 {
	if ttl == math.MaxUint32 {
		return store.NeverExpires
	}
	return storetime.ToStoreTime(now) + int64(ttl)
}

// Delete removes the record identified by key's digest.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	asKey, aerr := as.NewKeyWithDigest(key.Namespace, key.Collection, nil, key.ID)
	if aerr != nil {
		return wrapError("delete", aerr)
	}

	existed, aerr := s.client.delete(as.NewWritePolicy(0, 0), asKey)
	if aerr != nil {
		if aerr.Matches(types.KEY_NOT_FOUND_ERROR) {
			return store.ErrKeyNotFound
		}
		return wrapError("delete", aerr)
	}
	if !existed {
		return store.ErrKeyNotFound
	}
	return nil
}

// Close releases the cluster connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.client.close()
	return nil
}

// wrapError decodes the Aerospike result code into a store.ResultError.
func wrapError(op string, err error) error {
	var ae *as.AerospikeError
	if !errors.As(err, &ae) {
		return fmt.Errorf("aerospike: %s failed: %w", op, err)
	}
	return &store.ResultError{
		Op:      op,
		Code:    int(ae.ResultCode),
		Message: types.ResultCodeToString(ae.ResultCode),
		Err:     err,
	}
}

var _ store.Store = (*Store)(nil)
