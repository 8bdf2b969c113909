package healthprobe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, handler http.HandlerFunc, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler(w, req)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w, resp
}

func TestHealthAlwaysReturnsOK(t *testing.T) {
	hc := New()

	for _, ready := range []bool{false, true} {
		hc.SetReady(ready)
		w, resp := doRequest(t, hc.Health(), "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "healthy", resp.Status)
		assert.NotEmpty(t, resp.Uptime)
	}
}

func TestHealthReportsComponents(t *testing.T) {
	hc := New()
	hc.SetComponent("price-feed", true, "")
	hc.SetComponent("redemption", true, "")

	_, resp := doRequest(t, hc.Health(), "/health")
	assert.Equal(t, "healthy", resp.Status)
	require.Len(t, resp.Components, 2)
	assert.Equal(t, "price-feed", resp.Components[0].Name)
	assert.Equal(t, "redemption", resp.Components[1].Name)
}

func TestHealthDegradedComponent(t *testing.T) {
	hc := New()
	hc.SetReady(true)
	hc.SetComponent("price-feed", false, "websocket reconnecting")

	w, resp := doRequest(t, hc.Health(), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", resp.Status)
	require.Len(t, resp.Components, 1)
	assert.False(t, resp.Components[0].Healthy)
	assert.Equal(t, "websocket reconnecting", resp.Components[0].Detail)

	// a degraded component never fails readiness
	w, _ = doRequest(t, hc.Ready(), "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetComponentOverwrites(t *testing.T) {
	hc := New()
	hc.SetComponent("price-feed", false, "stale")
	hc.SetComponent("price-feed", true, "")

	components := hc.Components()
	require.Len(t, components, 1)
	assert.True(t, components[0].Healthy)
}

func TestReadyLifecycle(t *testing.T) {
	hc := New()

	w, resp := doRequest(t, hc.Ready(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", resp.Status)
	assert.NotEmpty(t, resp.Message)

	hc.SetReady(true)
	w, resp = doRequest(t, hc.Ready(), "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", resp.Status)
	assert.NotEmpty(t, resp.Uptime)

	hc.SetReady(false)
	w, _ = doRequest(t, hc.Ready(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestConcurrentAccess(t *testing.T) {
	hc := New()
	handler := hc.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.SetComponent("price-feed", i%2 == 0, "")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
			hc.Components()
		}
		done <- true
	}()

	<-done
	<-done
}
