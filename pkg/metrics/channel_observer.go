package metrics

import (
	"context"
	"time"

	"github.com/pq-oidc/kemtls-go/pkg/transport"
)

// ChannelObserver implements transport.Observer, recording metrics, traces,
// and logs for one channel.
type ChannelObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	role      string
}

// ChannelObserverConfig configures a channel observer.
type ChannelObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	Role      string // "client" or "server"
}

// NewChannelObserver creates a channel observer. Nil fields fall back to
// the package globals.
func NewChannelObserver(cfg ChannelObserverConfig) *ChannelObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	return &ChannelObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger:    cfg.Logger.Named("channel").With(Fields{"role": cfg.Role}),
		role:      cfg.Role,
	}
}

// ObserverFactory returns a transport.ObserverFactory backed by the given
// collector, tracer, and logger.
func ObserverFactory(collector *Collector, tracer Tracer, logger *Logger) transport.ObserverFactory {
	return func(role string) transport.Observer {
		return NewChannelObserver(ChannelObserverConfig{
			Collector: collector,
			Tracer:    tracer,
			Logger:    logger,
			Role:      role,
		})
	}
}

var _ transport.Observer = (*ChannelObserver)(nil)

// OnChannelStart implements transport.Observer.
func (o *ChannelObserver) OnChannelStart() {
	o.collector.ChannelStarted()
	o.logger.Info("channel started")
}

// OnChannelEnd implements transport.Observer.
func (o *ChannelObserver) OnChannelEnd() {
	o.collector.ChannelEnded()
	o.logger.Info("channel ended")
}

// OnChannelFailed implements transport.Observer.
func (o *ChannelObserver) OnChannelFailed(err error) {
	o.collector.ChannelFailed()
	o.logger.Error("channel failed", Fields{"error": err.Error()})
}

// OnHandshakeStart implements transport.Observer, returning a completion
// function that records latency and classifies failures.
func (o *ChannelObserver) OnHandshakeStart(ctx context.Context) (context.Context, func(error)) {
	spanName := SpanHandshakeClient
	kind := SpanKindClient
	if o.role == "server" {
		spanName = SpanHandshakeServer
		kind = SpanKindServer
	}

	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, spanName, WithSpanKind(kind))
	o.logger.Debug("handshake started")

	return ctx, func(err error) {
		duration := time.Since(start)
		if err != nil {
			o.collector.HandshakeFailed(err)
			o.logger.Error("handshake failed", Fields{
				"error":    err.Error(),
				"duration": duration.String(),
			})
		} else {
			o.collector.HandshakeCompleted(duration)
			o.logger.Info("handshake completed", Fields{"duration": duration.String()})
		}
		endSpan(err)
	}
}

// OnSeal implements transport.Observer.
func (o *ChannelObserver) OnSeal(ctx context.Context, plaintextLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanSeal)

	return ctx, func(err error) {
		if err != nil {
			o.collector.SealError()
			o.logger.Debug("seal failed", Fields{"error": err.Error()})
		} else {
			o.collector.RecordSealed(plaintextLen, time.Since(start))
		}
		endSpan(err)
	}
}

// OnOpen implements transport.Observer.
func (o *ChannelObserver) OnOpen(ctx context.Context, ciphertextLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanOpen)

	return ctx, func(err error) {
		if err != nil {
			o.collector.OpenError()
			o.logger.Debug("open failed", Fields{"error": err.Error()})
		} else {
			o.collector.RecordOpened(ciphertextLen, time.Since(start))
		}
		endSpan(err)
	}
}

// OnAuthFailure implements transport.Observer. The failed open is already
// counted by the OnOpen completion; this adds the security log line.
func (o *ChannelObserver) OnAuthFailure() {
	o.logger.Warn("record authentication failed")
}

// OnProtocolError implements transport.Observer.
func (o *ChannelObserver) OnProtocolError(err error) {
	o.logger.Error("protocol error", Fields{"error": err.Error()})
}

// Logger returns the observer's logger for custom logging.
func (o *ChannelObserver) Logger() *Logger {
	return o.logger
}
