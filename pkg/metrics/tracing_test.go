package metrics

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimpleTracerRecordsSpans(t *testing.T) {
	tracer := NewSimpleTracer()

	_, end := tracer.StartSpan(context.Background(), SpanSeal,
		WithSpanKind(SpanKindClient),
		WithAttributes(map[string]interface{}{"bytes": 64}))
	end(nil)

	_, end = tracer.StartSpan(context.Background(), SpanOpen)
	end(errors.New("tag mismatch"))

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != SpanSeal || spans[0].Kind != SpanKindClient {
		t.Errorf("span 0 = %q kind %d", spans[0].Name, spans[0].Kind)
	}
	if spans[0].Attributes["bytes"] != 64 {
		t.Errorf("attributes = %v", spans[0].Attributes)
	}
	if spans[0].Duration < 0 {
		t.Errorf("duration = %v", spans[0].Duration)
	}
	if spans[1].Error == nil {
		t.Error("span 1 must carry the error")
	}
}

func TestSimpleTracerParentPropagation(t *testing.T) {
	tracer := NewSimpleTracer()

	ctx, endParent := tracer.StartSpan(context.Background(), SpanHandshakeClient)
	_, endChild := tracer.StartSpan(ctx, SpanEncapsulate)
	endChild(nil)
	endParent(nil)

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.ParentID != parent.SpanID {
		t.Error("child span must reference the parent span")
	}
	if child.TraceID != parent.TraceID {
		t.Error("child span must share the parent's trace")
	}
}

func TestSimpleTracerReset(t *testing.T) {
	tracer := NewSimpleTracer()
	_, end := tracer.StartSpan(context.Background(), SpanSend)
	end(nil)

	tracer.Reset()
	if len(tracer.Spans()) != 0 {
		t.Error("Reset must drop recorded spans")
	}
}

func TestNoOpTracer(t *testing.T) {
	ctx := context.Background()
	got, end := NoOpTracer{}.StartSpan(ctx, SpanReceive)
	if got != ctx {
		t.Error("NoOpTracer must not modify the context")
	}
	end(nil)
	end(errors.New("double end must be harmless"))
}

func TestGlobalTracer(t *testing.T) {
	defer SetTracer(NoOpTracer{})

	tracer := NewSimpleTracer()
	SetTracer(tracer)

	_, end := StartSpan(context.Background(), SpanDecapsulate)
	end(nil)

	spans := tracer.Spans()
	if len(spans) != 1 || spans[0].Name != SpanDecapsulate {
		t.Errorf("global tracer did not record: %v", spans)
	}
}

func TestPoolMetricsObserver(t *testing.T) {
	c := NewCollector(nil)
	o := NewPoolMetricsObserver(c, NullLogger())

	o.OnAcquire(time.Millisecond, true)
	o.OnAcquire(time.Millisecond, false)
	o.OnAcquireTimeout()
	o.OnRelease()
	o.OnChannelCreated(5 * time.Millisecond)
	o.OnChannelClosed("stale")

	snap := c.Snapshot()
	if snap.PoolAcquires != 2 {
		t.Errorf("PoolAcquires = %d, want 2", snap.PoolAcquires)
	}
	if snap.PoolAcquireTimeouts != 1 {
		t.Errorf("PoolAcquireTimeouts = %d, want 1", snap.PoolAcquireTimeouts)
	}
}
