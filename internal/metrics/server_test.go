package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerAddrBeforeStart(t *testing.T) {
	s := NewServerWithRegistry(":0", prometheus.NewRegistry())
	assert.Equal(t, ":0", s.Addr())
	assert.NoError(t, s.Close())
}

func TestServerMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPurgeMetricsWithRegistry(reg)
	m.RecordOutcome("test", "sessions", "deleted")

	s := NewServerWithRegistry("127.0.0.1:0", reg)
	require.NoError(t, s.Start())
	defer s.Close()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "asdelete_purge_records_total"), "body: %s", body)
	assert.NoError(t, s.Err())
}

func TestServerStartBindFailure(t *testing.T) {
	first := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	require.NoError(t, first.Start())
	defer first.Close()

	second := NewServerWithRegistry(first.Addr(), prometheus.NewRegistry())
	assert.Error(t, second.Start())
}

func TestServerErrAfterListenerFailure(t *testing.T) {
	s := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	require.NoError(t, s.Start())
	defer s.Close()

	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	require.NoError(t, ln.Close())

	assert.Eventually(t, func() bool { return s.Err() != nil }, 2*time.Second, 10*time.Millisecond)
}

func TestServerErrNilAfterClose(t *testing.T) {
	s := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	require.NoError(t, s.Start())
	require.NoError(t, s.Close())
	assert.NoError(t, s.Err())
}
