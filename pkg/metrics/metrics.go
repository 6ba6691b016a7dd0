// Package metrics provides observability primitives for the KEMTLS channel
// library.
//
// The package includes:
//   - A Collector with channel, handshake, and record counters
//   - Prometheus-compatible metrics export
//   - OpenTelemetry tracing support behind the otel build tag
//   - Structured logging with levels
//   - Health check functionality
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// Collector aggregates metrics from channels, handshakes, and pools.
type Collector struct {
	// Channel lifecycle
	channelsActive atomic.Uint64
	channelsTotal  atomic.Uint64
	channelsFailed atomic.Uint64

	// Handshake outcomes
	handshakesCompleted atomic.Uint64
	handshakeLatency    *Histogram

	// Handshake failures by kind
	failuresAuth      atomic.Uint64
	failuresProtocol  atomic.Uint64
	failuresCrypto    atomic.Uint64
	failuresMalformed atomic.Uint64
	failuresTimeout   atomic.Uint64
	failuresOther     atomic.Uint64

	// Record traffic
	recordsSent     atomic.Uint64
	recordsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	sealErrors      atomic.Uint64
	openErrors      atomic.Uint64
	sealLatency     *Histogram
	openLatency     *Histogram

	// Pool activity
	poolAcquires        atomic.Uint64
	poolAcquireTimeouts atomic.Uint64
	poolChannelsIdle    atomic.Uint64

	createdAt time.Time
	labels    Labels
}

// Default bucket configurations for histograms.
var (
	// HandshakeLatencyBuckets for handshake duration (milliseconds).
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// RecordLatencyBuckets for seal/open operations (microseconds).
	RecordLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}
	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		sealLatency:      NewHistogram(RecordLatencyBuckets),
		openLatency:      NewHistogram(RecordLatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// --- Channel Metrics ---

// ChannelStarted increments active and total channel counters.
func (c *Collector) ChannelStarted() {
	c.channelsActive.Add(1)
	c.channelsTotal.Add(1)
}

// ChannelEnded decrements the active channel counter.
func (c *Collector) ChannelEnded() {
	for {
		current := c.channelsActive.Load()
		if current == 0 {
			return
		}
		if c.channelsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// ChannelFailed records a failed channel.
func (c *Collector) ChannelFailed() {
	c.channelsFailed.Add(1)
}

// --- Handshake Metrics ---

// HandshakeCompleted records a successful handshake and its duration.
func (c *Collector) HandshakeCompleted(d time.Duration) {
	c.handshakesCompleted.Add(1)
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// HandshakeFailed classifies a handshake failure by its error kind.
func (c *Collector) HandshakeFailed(err error) {
	switch {
	case qerrors.Is(err, qerrors.ErrAuthenticationFailed):
		c.failuresAuth.Add(1)
	case qerrors.Is(err, qerrors.ErrProtocolViolation):
		c.failuresProtocol.Add(1)
	case qerrors.Is(err, qerrors.ErrCryptoFailure):
		c.failuresCrypto.Add(1)
	case qerrors.Is(err, qerrors.ErrMalformedMessage) || qerrors.Is(err, qerrors.ErrMessageTooLarge):
		c.failuresMalformed.Add(1)
	case qerrors.Is(err, qerrors.ErrTimeout):
		c.failuresTimeout.Add(1)
	default:
		c.failuresOther.Add(1)
	}
}

// --- Record Metrics ---

// RecordSealed records an encrypted record and its plaintext size.
func (c *Collector) RecordSealed(plaintextLen int, d time.Duration) {
	c.recordsSent.Add(1)
	c.bytesSent.Add(uint64(plaintextLen))
	c.sealLatency.Observe(float64(d.Microseconds()))
}

// RecordOpened records a decrypted record and its ciphertext size.
func (c *Collector) RecordOpened(ciphertextLen int, d time.Duration) {
	c.recordsReceived.Add(1)
	c.bytesReceived.Add(uint64(ciphertextLen))
	c.openLatency.Observe(float64(d.Microseconds()))
}

// SealError increments the seal error counter.
func (c *Collector) SealError() {
	c.sealErrors.Add(1)
}

// OpenError increments the open error counter.
func (c *Collector) OpenError() {
	c.openErrors.Add(1)
}

// --- Pool Metrics ---

// PoolAcquire records an acquire from the channel pool.
func (c *Collector) PoolAcquire() {
	c.poolAcquires.Add(1)
}

// PoolAcquireTimeout records an acquire that timed out.
func (c *Collector) PoolAcquireTimeout() {
	c.poolAcquireTimeouts.Add(1)
}

// SetPoolIdle records the current idle channel count.
func (c *Collector) SetPoolIdle(n int) {
	c.poolChannelsIdle.Store(uint64(n))
}

// --- Snapshot ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	ChannelsActive uint64
	ChannelsTotal  uint64
	ChannelsFailed uint64

	HandshakesCompleted uint64
	FailuresAuth        uint64
	FailuresProtocol    uint64
	FailuresCrypto      uint64
	FailuresMalformed   uint64
	FailuresTimeout     uint64
	FailuresOther       uint64

	RecordsSent     uint64
	RecordsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	SealErrors      uint64
	OpenErrors      uint64

	PoolAcquires        uint64
	PoolAcquireTimeouts uint64
	PoolChannelsIdle    uint64

	HandshakeLatency HistogramSummary
	SealLatency      HistogramSummary
	OpenLatency      HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.createdAt),
		ChannelsActive:      c.channelsActive.Load(),
		ChannelsTotal:       c.channelsTotal.Load(),
		ChannelsFailed:      c.channelsFailed.Load(),
		HandshakesCompleted: c.handshakesCompleted.Load(),
		FailuresAuth:        c.failuresAuth.Load(),
		FailuresProtocol:    c.failuresProtocol.Load(),
		FailuresCrypto:      c.failuresCrypto.Load(),
		FailuresMalformed:   c.failuresMalformed.Load(),
		FailuresTimeout:     c.failuresTimeout.Load(),
		FailuresOther:       c.failuresOther.Load(),
		RecordsSent:         c.recordsSent.Load(),
		RecordsReceived:     c.recordsReceived.Load(),
		BytesSent:           c.bytesSent.Load(),
		BytesReceived:       c.bytesReceived.Load(),
		SealErrors:          c.sealErrors.Load(),
		OpenErrors:          c.openErrors.Load(),
		PoolAcquires:        c.poolAcquires.Load(),
		PoolAcquireTimeouts: c.poolAcquireTimeouts.Load(),
		PoolChannelsIdle:    c.poolChannelsIdle.Load(),
		HandshakeLatency:    c.handshakeLatency.Summary(),
		SealLatency:         c.sealLatency.Summary(),
		OpenLatency:         c.openLatency.Summary(),
		Labels:              c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.channelsActive.Store(0)
	c.channelsTotal.Store(0)
	c.channelsFailed.Store(0)
	c.handshakesCompleted.Store(0)
	c.failuresAuth.Store(0)
	c.failuresProtocol.Store(0)
	c.failuresCrypto.Store(0)
	c.failuresMalformed.Store(0)
	c.failuresTimeout.Store(0)
	c.failuresOther.Store(0)
	c.recordsSent.Store(0)
	c.recordsReceived.Store(0)
	c.bytesSent.Store(0)
	c.bytesReceived.Store(0)
	c.sealErrors.Store(0)
	c.openErrors.Store(0)
	c.poolAcquires.Store(0)
	c.poolAcquireTimeouts.Store(0)
	c.poolChannelsIdle.Store(0)
	c.handshakeLatency.Reset()
	c.sealLatency.Reset()
	c.openLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector, creating one on first use.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector. Call during initialization
// before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
