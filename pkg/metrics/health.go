package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the overall health state.
type HealthStatus string

const (
	// HealthStatusHealthy indicates all checks are passing.
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusUnhealthy indicates at least one check is failing.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// CheckFunc performs one health check; nil means healthy.
type CheckFunc func() error

// HealthCheck aggregates named checks and key channel metrics.
type HealthCheck struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	collector *Collector
	startTime time.Time
	version   string
}

// CheckResult is the outcome of a single named check.
type CheckResult struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Metrics   *HealthMetrics         `json:"metrics,omitempty"`
}

// HealthMetrics contains key metrics for health monitoring.
type HealthMetrics struct {
	ChannelsActive      uint64 `json:"channels_active"`
	ChannelsTotal       uint64 `json:"channels_total"`
	ChannelsFailed      uint64 `json:"channels_failed"`
	HandshakesCompleted uint64 `json:"handshakes_completed"`
	RecordsSent         uint64 `json:"records_sent"`
	RecordsReceived     uint64 `json:"records_received"`
}

// NewHealthCheck creates a health check instance.
func NewHealthCheck(collector *Collector, version string) *HealthCheck {
	return &HealthCheck{
		checks:    make(map[string]CheckFunc),
		collector: collector,
		startTime: time.Now(),
		version:   version,
	}
}

// AddCheck registers a named health check.
func (h *HealthCheck) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RemoveCheck removes a named health check.
func (h *HealthCheck) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.checks, name)
}

// Check runs all registered checks and returns the aggregate response.
func (h *HealthCheck) Check() HealthResponse {
	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.startTime).String(),
		Version:   h.version,
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	for name, fn := range checks {
		if err := fn(); err != nil {
			resp.Status = HealthStatusUnhealthy
			resp.Checks[name] = CheckResult{Status: HealthStatusUnhealthy, Message: err.Error()}
		} else {
			resp.Checks[name] = CheckResult{Status: HealthStatusHealthy}
		}
	}

	if h.collector != nil {
		snap := h.collector.Snapshot()
		resp.Metrics = &HealthMetrics{
			ChannelsActive:      snap.ChannelsActive,
			ChannelsTotal:       snap.ChannelsTotal,
			ChannelsFailed:      snap.ChannelsFailed,
			HandshakesCompleted: snap.HandshakesCompleted,
			RecordsSent:         snap.RecordsSent,
			RecordsReceived:     snap.RecordsReceived,
		}
	}

	return resp
}

// Handler returns an http.Handler serving the health response. The status
// code is 200 when healthy, 503 otherwise.
func (h *HealthCheck) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}

// Serve starts an HTTP server with /healthz and /metrics endpoints.
func (h *HealthCheck) Serve(addr string, exporter *PrometheusExporter) error {
	mux := http.NewServeMux()
	mux.Handle("/healthz", h.Handler())
	if exporter != nil {
		mux.Handle("/metrics", exporter.Handler())
	}
	return NewObservabilityServer(addr, mux).ListenAndServe()
}
