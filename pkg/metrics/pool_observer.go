package metrics

import (
	"time"

	"github.com/pq-oidc/kemtls-go/pkg/transport"
)

// PoolMetricsObserver implements transport.PoolObserver and records pool
// activity to a Collector.
type PoolMetricsObserver struct {
	collector *Collector
	logger    *Logger
}

// NewPoolMetricsObserver creates a pool observer. Nil fields fall back to
// the package globals.
func NewPoolMetricsObserver(collector *Collector, logger *Logger) *PoolMetricsObserver {
	if collector == nil {
		collector = Global()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &PoolMetricsObserver{
		collector: collector,
		logger:    logger.Named("pool"),
	}
}

var _ transport.PoolObserver = (*PoolMetricsObserver)(nil)

// OnAcquire implements transport.PoolObserver.
func (o *PoolMetricsObserver) OnAcquire(waitDuration time.Duration, reused bool) {
	o.collector.PoolAcquire()
	o.logger.Debug("channel acquired", Fields{
		"wait":   waitDuration.String(),
		"reused": reused,
	})
}

// OnAcquireTimeout implements transport.PoolObserver.
func (o *PoolMetricsObserver) OnAcquireTimeout() {
	o.collector.PoolAcquireTimeout()
	o.logger.Warn("channel acquire timed out")
}

// OnRelease implements transport.PoolObserver.
func (o *PoolMetricsObserver) OnRelease() {
	o.logger.Debug("channel released")
}

// OnChannelCreated implements transport.PoolObserver.
func (o *PoolMetricsObserver) OnChannelCreated(dialDuration time.Duration) {
	o.logger.Debug("pooled channel created", Fields{"dial": dialDuration.String()})
}

// OnChannelClosed implements transport.PoolObserver.
func (o *PoolMetricsObserver) OnChannelClosed(reason string) {
	o.logger.Debug("pooled channel closed", Fields{"reason": reason})
}
