package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a Prometheus exporter for the collector.
// The namespace is prepended to all metric names (e.g. "kemtls").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{collector: c, namespace: namespace}
}

// Handler returns an http.Handler serving Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	e.writeGauge(w, "channels_active", "Number of currently active channels", labels, float64(snap.ChannelsActive))
	e.writeCounter(w, "channels_total", "Total number of channels created", labels, float64(snap.ChannelsTotal))
	e.writeCounter(w, "channels_failed_total", "Total number of failed channels", labels, float64(snap.ChannelsFailed))

	e.writeCounter(w, "handshakes_completed_total", "Total handshakes completed", labels, float64(snap.HandshakesCompleted))
	e.writeCounter(w, "handshake_failures_auth_total", "Handshake failures from authentication", labels, float64(snap.FailuresAuth))
	e.writeCounter(w, "handshake_failures_protocol_total", "Handshake failures from protocol violations", labels, float64(snap.FailuresProtocol))
	e.writeCounter(w, "handshake_failures_crypto_total", "Handshake failures from crypto errors", labels, float64(snap.FailuresCrypto))
	e.writeCounter(w, "handshake_failures_malformed_total", "Handshake failures from malformed messages", labels, float64(snap.FailuresMalformed))
	e.writeCounter(w, "handshake_failures_timeout_total", "Handshake failures from timeouts", labels, float64(snap.FailuresTimeout))
	e.writeCounter(w, "handshake_failures_other_total", "Handshake failures from other causes", labels, float64(snap.FailuresOther))

	e.writeCounter(w, "records_sent_total", "Total records sent", labels, float64(snap.RecordsSent))
	e.writeCounter(w, "records_received_total", "Total records received", labels, float64(snap.RecordsReceived))
	e.writeCounter(w, "bytes_sent_total", "Total plaintext bytes sent", labels, float64(snap.BytesSent))
	e.writeCounter(w, "bytes_received_total", "Total ciphertext bytes received", labels, float64(snap.BytesReceived))
	e.writeCounter(w, "seal_errors_total", "Total record encryption errors", labels, float64(snap.SealErrors))
	e.writeCounter(w, "open_errors_total", "Total record decryption errors", labels, float64(snap.OpenErrors))

	e.writeCounter(w, "pool_acquires_total", "Total pool acquires", labels, float64(snap.PoolAcquires))
	e.writeCounter(w, "pool_acquire_timeouts_total", "Total pool acquire timeouts", labels, float64(snap.PoolAcquireTimeouts))
	e.writeGauge(w, "pool_channels_idle", "Current idle pooled channels", labels, float64(snap.PoolChannelsIdle))

	e.writeGauge(w, "uptime_seconds", "Time since the collector was created", labels, snap.Uptime.Seconds())

	e.writeHistogram(w, "handshake_duration_milliseconds", "Handshake duration in milliseconds", labels, snap.HandshakeLatency)
	e.writeHistogram(w, "seal_duration_microseconds", "Record encryption duration in microseconds", labels, snap.SealLatency)
	e.writeHistogram(w, "open_duration_microseconds", "Record decryption duration in microseconds", labels, snap.OpenLatency)
}

func (e *PrometheusExporter) writeCounter(w io.Writer, name, help, labels string, value float64) {
	e.writeMetric(w, name, help, "counter", labels, value)
}

func (e *PrometheusExporter) writeGauge(w io.Writer, name, help, labels string, value float64) {
	e.writeMetric(w, name, help, "gauge", labels, value)
}

func (e *PrometheusExporter) writeMetric(w io.Writer, name, help, typ, labels string, value float64) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
	fmt.Fprintf(w, "# TYPE %s_%s histogram\n", e.namespace, name)

	fullName := e.namespace + "_" + name

	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		if labels != "" {
			fmt.Fprintf(w, "%s_bucket{%s,le=\"%s\"} %d\n", fullName, labels, le, b.Count)
		} else {
			fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", fullName, le, b.Count)
		}
	}

	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

// formatLabels converts Labels to Prometheus label format with sorted keys.
func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// %q escapes backslashes, quotes, and newlines exactly the way the
	// Prometheus text format requires.
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}

// ServePrometheus starts an HTTP server serving Prometheus metrics at
// /metrics. Convenience for simple deployments.
func ServePrometheus(addr string, c *Collector, namespace string) error {
	exp := NewPrometheusExporter(c, namespace)
	mux := http.NewServeMux()
	mux.Handle("/metrics", exp.Handler())
	return NewObservabilityServer(addr, mux).ListenAndServe()
}
