package oxia

import (
	"context"
	"fmt"
	"testing"
	"time"

	oxiaclient "github.com/oxia-db/oxia/oxia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/asdelete/internal/store"
)

// These tests use an embedded Oxia standalone server by default.
// To test against an external server, set the OXIA_SERVICE_ADDRESS environment variable.

func TestIntegrationScanAndDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Oxia integration test in short mode")
	}

	server := StartTestServer(t)
	ctx := context.Background()

	seed, err := oxiaclient.NewSyncClient(server.Addr(), oxiaclient.WithNamespace("default"))
	require.NoError(t, err)
	defer seed.Close()

	expiresAt := time.Now().Add(time.Hour).UnixMilli()
	for i := range 5 {
		value := fmt.Sprintf(`{"expiresAtMs":%d}`, expiresAt)
		_, _, err := seed.Put(ctx, fmt.Sprintf("/sessions/s%d", i), []byte(value))
		require.NoError(t, err)
	}
	_, _, err = seed.Put(ctx, "/other/x", []byte(`{}`))
	require.NoError(t, err)

	st, err := New(ctx, Config{ServiceAddress: server.Addr(), RequestTimeout: 10 * time.Second})
	require.NoError(t, err)
	defer st.Close()

	var keys []store.Key
	for rec, err := range st.Scan(ctx, "default", "sessions") {
		require.NoError(t, err)
		assert.NotEqual(t, store.NeverExpires, rec.Expiration)
		keys = append(keys, rec.Key)
	}
	require.Len(t, keys, 5)

	require.NoError(t, st.Delete(ctx, keys[0]))
	assert.ErrorIs(t, st.Delete(ctx, keys[0]), store.ErrKeyNotFound)

	var remaining int
	for _, err := range st.Scan(ctx, "default", "sessions") {
		require.NoError(t, err)
		remaining++
	}
	assert.Equal(t, 4, remaining)
}
