package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newRPCServer returns an httptest server speaking just enough JSON-RPC for
// ethclient probes. The handler answers eth_chainId with Polygon's chain ID.
func newRPCServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}

		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x89",
		}
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(resp)
		require.NoError(t, err)
	}))
}

func TestNewEndpointPool_Validation(t *testing.T) {
	_, err := NewEndpointPool(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewEndpointPool([]string{"http://localhost:8545"}, nil)
	assert.Error(t, err)

	pool, err := NewEndpointPool([]string{"http://localhost:8545"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, pool)
}

func TestEndpointPool_AcquireFirstHealthy(t *testing.T) {
	server := newRPCServer(t, nil)
	defer server.Close()

	pool, err := NewEndpointPool([]string{server.URL}, zap.NewNop())
	require.NoError(t, err)

	client, endpoint, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, server.URL, endpoint)
}

func TestEndpointPool_FallsBackInOrder(t *testing.T) {
	var bad atomic.Int64
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bad.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer badServer.Close()

	var good atomic.Int64
	goodServer := newRPCServer(t, &good)
	defer goodServer.Close()

	pool, err := NewEndpointPool([]string{badServer.URL, goodServer.URL}, zap.NewNop())
	require.NoError(t, err)

	client, endpoint, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, goodServer.URL, endpoint)
	assert.GreaterOrEqual(t, bad.Load(), int64(1))
	assert.GreaterOrEqual(t, good.Load(), int64(1))
}

func TestEndpointPool_RetriesFromTopEachAcquire(t *testing.T) {
	var first atomic.Int64
	firstServer := newRPCServer(t, &first)
	defer firstServer.Close()

	secondServer := newRPCServer(t, nil)
	defer secondServer.Close()

	pool, err := NewEndpointPool([]string{firstServer.URL, secondServer.URL}, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		client, endpoint, acquireErr := pool.Acquire(context.Background())
		require.NoError(t, acquireErr)
		assert.Equal(t, firstServer.URL, endpoint)
		client.Close()
	}

	assert.GreaterOrEqual(t, first.Load(), int64(3))
}

func TestEndpointPool_AllUnhealthy(t *testing.T) {
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer badServer.Close()

	pool, err := NewEndpointPool([]string{badServer.URL}, zap.NewNop())
	require.NoError(t, err)

	_, _, err = pool.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHealthyEndpoint)
}

func TestEndpointPool_Endpoints(t *testing.T) {
	urls := []string{"http://a.example", "http://b.example"}
	pool, err := NewEndpointPool(urls, zap.NewNop())
	require.NoError(t, err)

	got := pool.Endpoints()
	assert.Equal(t, urls, got)

	got[0] = "mutated"
	assert.Equal(t, "http://a.example", pool.Endpoints()[0])
}
