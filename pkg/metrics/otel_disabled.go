//go:build !otel
// +build !otel

package metrics

import "context"

// OTelTracer is the stand-in used when the binary is built without the otel
// tag. It satisfies the same surface as the real adapter so callers need no
// build-tag awareness of their own.
type OTelTracer struct{}

// NewOTelTracer returns the stand-in tracer; spans it starts go nowhere.
func NewOTelTracer(serviceName string) *OTelTracer {
	return &OTelTracer{}
}

// StartSpan returns the context unchanged and an end function that does
// nothing.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, SpanEnder) {
	return ctx, func(err error) {}
}

// OTelEnabled reports whether OpenTelemetry support is compiled in.
func OTelEnabled() bool {
	return false
}
