package aerospike

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/asdelete/internal/store"
	"github.com/dray-io/asdelete/internal/storetime"
)

// fakeClient implements client for testing.
type fakeClient struct {
	results   []*as.Result
	scanErr   as.Error
	scanNS    string
	scanSet   string
	policy    *as.ScanPolicy
	scanClose int

	deleted   [][]byte
	deleteErr as.Error
	existed   bool

	closed bool
}

func (f *fakeClient) scanAll(policy *as.ScanPolicy, namespace, setName string) (<-chan *as.Result, func(), as.Error) {
	f.policy = policy
	f.scanNS = namespace
	f.scanSet = setName
	if f.scanErr != nil {
		return nil, nil, f.scanErr
	}
	ch := make(chan *as.Result, len(f.results))
	for _, r := range f.results {
		ch <- r
	}
	close(ch)
	return ch, func() { f.scanClose++ }, nil
}

func (f *fakeClient) delete(_ *as.WritePolicy, key *as.Key) (bool, as.Error) {
	f.deleted = append(f.deleted, key.Digest())
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.existed, nil
}

func (f *fakeClient) close() {
	f.closed = true
}

func newTestRecord(t *testing.T, set, userKey string, ttl uint32) *as.Record {
	t.Helper()
	key, err := as.NewKey("test", set, userKey)
	require.Nil(t, err)
	return &as.Record{Key: key, Expiration: ttl}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty host", cfg: Config{Port: 3000}, wantErr: "host is required"},
		{name: "zero port", cfg: Config{Host: "localhost"}, wantErr: "invalid port"},
		{name: "port out of range", cfg: Config{Host: "localhost", Port: 70000}, wantErr: "invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVoidTime(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, storetime.ToStoreTime(now)+3600, voidTime(3600, now))
	assert.Equal(t, store.NeverExpires, voidTime(math.MaxUint32, now))
}

func TestScanConvertsRecords(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	fc := &fakeClient{
		results: []*as.Result{
			{Record: newTestRecord(t, "sessions", "a", 60)},
			{Record: newTestRecord(t, "sessions", "b", math.MaxUint32)},
		},
	}
	s := newWithClient(fc, Config{RecordsPerSecond: 500, MaxConcurrentNodes: 2})
	s.now = func() time.Time { return now }

	var recs []store.Record
	for rec, err := range s.Scan(context.Background(), "test", "sessions") {
		require.NoError(t, err)
		recs = append(recs, rec)
	}

	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Key.Name)
	assert.Equal(t, "test", recs[0].Key.Namespace)
	assert.Equal(t, "sessions", recs[0].Key.Collection)
	assert.Len(t, recs[0].Key.ID, 20)
	assert.Equal(t, storetime.ToStoreTime(now)+60, recs[0].Expiration)
	assert.Equal(t, store.NeverExpires, recs[1].Expiration)

	assert.Equal(t, "test", fc.scanNS)
	assert.Equal(t, "sessions", fc.scanSet)
	assert.False(t, fc.policy.IncludeBinData)
	assert.Equal(t, 500, fc.policy.RecordsPerSecond)
	assert.Equal(t, 2, fc.policy.MaxConcurrentNodes)
	assert.Equal(t, 1, fc.scanClose)
}

func TestScanStopsWhenConsumerBreaks(t *testing.T) {
	fc := &fakeClient{
		results: []*as.Result{
			{Record: newTestRecord(t, "s", "a", 1)},
			{Record: newTestRecord(t, "s", "b", 1)},
		},
	}
	s := newWithClient(fc, Config{})

	var n int
	for range s.Scan(context.Background(), "test", "s") {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, fc.scanClose)
}

func TestScanStartFailure(t *testing.T) {
	fc := &fakeClient{scanErr: &as.AerospikeError{ResultCode: types.INVALID_NAMESPACE}}
	s := newWithClient(fc, Config{})

	var gotErr error
	for _, err := range s.Scan(context.Background(), "nope", "s") {
		gotErr = err
	}

	var re *store.ResultError
	require.True(t, errors.As(gotErr, &re))
	assert.Equal(t, "scan", re.Op)
	assert.Equal(t, int(types.INVALID_NAMESPACE), re.Code)
	assert.Equal(t, types.ResultCodeToString(types.INVALID_NAMESPACE), re.Message)
}

func TestScanResultFailure(t *testing.T) {
	fc := &fakeClient{
		results: []*as.Result{
			{Record: newTestRecord(t, "s", "a", 1)},
			{Err: &as.AerospikeError{ResultCode: types.TIMEOUT}},
			{Record: newTestRecord(t, "s", "c", 1)},
		},
	}
	s := newWithClient(fc, Config{})

	var n int
	var gotErr error
	for _, err := range s.Scan(context.Background(), "test", "s") {
		if err != nil {
			gotErr = err
			break
		}
		n++
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, types.ResultCodeToString(types.TIMEOUT), store.ResultMessage(gotErr))
}

func TestScanCancelled(t *testing.T) {
	fc := &fakeClient{
		results: []*as.Result{{Record: newTestRecord(t, "s", "a", 1)}},
	}
	s := newWithClient(fc, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range s.Scan(ctx, "test", "s") {
		if err != nil {
			gotErr = err
		}
	}
	// Either the buffered record or the cancellation wins the select; a
	// cancelled context must surface once nothing else is ready.
	if gotErr != nil {
		assert.ErrorIs(t, gotErr, context.Canceled)
	}
}

func TestDelete(t *testing.T) {
	fc := &fakeClient{existed: true}
	s := newWithClient(fc, Config{})
	rec := newTestRecord(t, "s", "a", 1)

	err := s.Delete(context.Background(), store.Key{Namespace: "test", Collection: "s", ID: rec.Key.Digest()})
	require.NoError(t, err)
	require.Len(t, fc.deleted, 1)
	assert.Equal(t, rec.Key.Digest(), fc.deleted[0])
}

func TestDeleteMissingKey(t *testing.T) {
	rec := newTestRecord(t, "s", "a", 1)
	key := store.Key{Namespace: "test", Collection: "s", ID: rec.Key.Digest()}

	s := newWithClient(&fakeClient{existed: false}, Config{})
	assert.ErrorIs(t, s.Delete(context.Background(), key), store.ErrKeyNotFound)

	s = newWithClient(&fakeClient{deleteErr: &as.AerospikeError{ResultCode: types.KEY_NOT_FOUND_ERROR}}, Config{})
	assert.ErrorIs(t, s.Delete(context.Background(), key), store.ErrKeyNotFound)
}

func TestDeleteFailure(t *testing.T) {
	rec := newTestRecord(t, "s", "a", 1)
	key := store.Key{Namespace: "test", Collection: "s", ID: rec.Key.Digest()}
	s := newWithClient(&fakeClient{deleteErr: &as.AerospikeError{ResultCode: types.DEVICE_OVERLOAD}}, Config{})

	err := s.Delete(context.Background(), key)
	var re *store.ResultError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "delete", re.Op)
	assert.Equal(t, int(types.DEVICE_OVERLOAD), re.Code)
}

func TestClose(t *testing.T) {
	fc := &fakeClient{}
	s := newWithClient(fc, Config{})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, fc.closed)
	assert.ErrorIs(t, s.Delete(context.Background(), store.Key{}), store.ErrStoreClosed)

	for _, err := range s.Scan(context.Background(), "test", "s") {
		assert.ErrorIs(t, err, store.ErrStoreClosed)
	}
}
