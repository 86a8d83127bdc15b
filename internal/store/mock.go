package store

import (
	"context"
	"iter"
	"sort"
	"sync"
)

// MockStore implements Store for testing.
// It is exported so that tests in other packages can use it.
type MockStore struct {
	mu          sync.Mutex
	data        map[string]mockRecord
	closed      bool
	deleteCalls int
	deleteErrs  map[string]error
	scanErr     error
	scanErrAt   int
}

type mockRecord struct {
	key        Key
	expiration int64
}

// NewMockStore creates a new MockStore for testing.
func NewMockStore() *MockStore {
	return &MockStore{
		data:       make(map[string]mockRecord),
		deleteErrs: make(map[string]error),
	}
}

func mockID(namespace, collection, name string) string {
	return namespace + "/" + collection + "/" + name
}

// Put adds or replaces a record.
func (m *MockStore) Put(namespace, collection, name string, expiration int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := mockID(namespace, collection, name)
	m.data[id] = mockRecord{
		key: Key{
			Namespace:  namespace,
			Collection: collection,
			ID:         []byte(id),
			Name:       name,
		},
		expiration: expiration,
	}
}

// Has reports whether the record still exists.
func (m *MockStore) Has(namespace, collection, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[mockID(namespace, collection, name)]
	return ok
}

// Len returns the number of stored records.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// DeleteCalls returns the number of Delete calls received.
func (m *MockStore) DeleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalls
}

// FailDelete makes Delete of the named record return err.
func (m *MockStore) FailDelete(namespace, collection, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErrs[mockID(namespace, collection, name)] = err
}

// FailScanAfter makes Scan yield err after n records.
func (m *MockStore) FailScanAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanErr = err
	m.scanErrAt = n
}

func (m *MockStore) Scan(ctx context.Context, namespace, collection string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			yield(Record{}, ErrStoreClosed)
			return
		}
		var recs []Record
		for _, r := range m.data {
			if r.key.Namespace == namespace && r.key.Collection == collection {
				recs = append(recs, Record{Key: r.key, Expiration: r.expiration})
			}
		}
		scanErr, scanErrAt := m.scanErr, m.scanErrAt
		m.mu.Unlock()

		// Deterministic order keeps verbose output stable in tests.
		sort.Slice(recs, func(i, j int) bool { return recs[i].Key.Name < recs[j].Key.Name })

		for i, rec := range recs {
			if scanErr != nil && i == scanErrAt {
				yield(Record{}, scanErr)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if scanErr != nil && scanErrAt >= len(recs) {
			yield(Record{}, scanErr)
		}
	}
}

func (m *MockStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.deleteCalls++

	id := string(key.ID)
	if err, ok := m.deleteErrs[id]; ok {
		return err
	}
	if _, ok := m.data[id]; !ok {
		return ErrKeyNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Store = (*MockStore)(nil)
