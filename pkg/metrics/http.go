package metrics

import (
	"context"
	"net/http"
	"time"
)

// Timeouts for the observability listener. The handlers serve small
// in-memory snapshots, so slow-client protection matters more than throughput.
const (
	obsReadHeaderTimeout = 5 * time.Second
	obsReadTimeout       = 10 * time.Second
	obsWriteTimeout      = 10 * time.Second
	obsIdleTimeout       = 2 * time.Minute
)

// ObservabilityServer owns the HTTP listener for the /metrics and /healthz
// endpoints of one process, so callers can stop it cleanly instead of leaking
// it across reconfigurations.
type ObservabilityServer struct {
	srv *http.Server
}

// NewObservabilityServer wraps a handler in an HTTP server with conservative
// timeouts suitable for scrape endpoints.
func NewObservabilityServer(addr string, handler http.Handler) *ObservabilityServer {
	return &ObservabilityServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: obsReadHeaderTimeout,
			ReadTimeout:       obsReadTimeout,
			WriteTimeout:      obsWriteTimeout,
			IdleTimeout:       obsIdleTimeout,
		},
	}
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *ObservabilityServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops the listener, waiting for in-flight scrapes until ctx
// expires.
func (s *ObservabilityServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
