// Package healthprobe provides liveness and readiness endpoints with
// per-component status reporting.
package healthprobe

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool

	mu         sync.RWMutex
	components map[string]ComponentStatus
}

// ComponentStatus is the reported state of one subsystem.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]ComponentStatus),
	}
}

// SetReady marks the application as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetComponent records the status of a named subsystem. Components appear in
// the health response but do not gate readiness; a degraded price feed still
// leaves the process serving traffic.
func (h *HealthChecker) SetComponent(name string, healthy bool, detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentStatus{Name: name, Healthy: healthy, Detail: detail}
}

// Components returns the recorded component statuses sorted by name.
func (h *HealthChecker) Components() []ComponentStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ComponentStatus, 0, len(h.components))
	for _, c := range h.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Uptime     string            `json:"uptime"`
	Message    string            `json:"message,omitempty"`
	Components []ComponentStatus `json:"components,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		components := h.Components()
		for _, c := range components {
			if !c.Healthy {
				status = "degraded"
				break
			}
		}

		resp := HealthResponse{
			Status:     status,
			Uptime:     time.Since(h.startTime).String(),
			Components: components,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready, 503 Service Unavailable if not.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			resp := HealthResponse{
				Status:  "not_ready",
				Message: "application is starting",
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		resp := HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
