package metrics

import (
	"context"
	"errors"
	"testing"

	qerrors "github.com/pq-oidc/kemtls-go/internal/errors"
)

func newTestObserver(c *Collector, role string) *ChannelObserver {
	return NewChannelObserver(ChannelObserverConfig{
		Collector: c,
		Tracer:    NoOpTracer{},
		Logger:    NullLogger(),
		Role:      role,
	})
}

func TestObserverChannelLifecycle(t *testing.T) {
	c := NewCollector(nil)
	o := newTestObserver(c, "client")

	o.OnChannelStart()
	o.OnChannelFailed(errors.New("boom"))
	o.OnChannelEnd()

	snap := c.Snapshot()
	if snap.ChannelsTotal != 1 || snap.ChannelsFailed != 1 || snap.ChannelsActive != 0 {
		t.Errorf("snapshot = total %d, failed %d, active %d",
			snap.ChannelsTotal, snap.ChannelsFailed, snap.ChannelsActive)
	}
}

func TestObserverHandshakeOutcomes(t *testing.T) {
	c := NewCollector(nil)
	o := newTestObserver(c, "server")

	_, done := o.OnHandshakeStart(context.Background())
	done(nil)

	_, done = o.OnHandshakeStart(context.Background())
	done(qerrors.NewProtocolError("client finished", qerrors.ErrAuthenticationFailed))

	snap := c.Snapshot()
	if snap.HandshakesCompleted != 1 {
		t.Errorf("HandshakesCompleted = %d, want 1", snap.HandshakesCompleted)
	}
	if snap.FailuresAuth != 1 {
		t.Errorf("FailuresAuth = %d, want 1", snap.FailuresAuth)
	}
	if snap.HandshakeLatency.Count != 1 {
		t.Errorf("latency count = %d, want 1", snap.HandshakeLatency.Count)
	}
}

func TestObserverRecordHooks(t *testing.T) {
	c := NewCollector(nil)
	o := newTestObserver(c, "client")

	_, done := o.OnSeal(context.Background(), 128)
	done(nil)
	_, done = o.OnSeal(context.Background(), 64)
	done(qerrors.ErrNonceExhausted)

	_, done = o.OnOpen(context.Background(), 144)
	done(nil)
	_, done = o.OnOpen(context.Background(), 80)
	done(qerrors.ErrAuthenticationFailed)
	o.OnAuthFailure()

	snap := c.Snapshot()
	if snap.RecordsSent != 1 || snap.BytesSent != 128 {
		t.Errorf("sent = %d records / %d bytes, want 1 / 128", snap.RecordsSent, snap.BytesSent)
	}
	if snap.SealErrors != 1 {
		t.Errorf("SealErrors = %d, want 1", snap.SealErrors)
	}
	if snap.RecordsReceived != 1 || snap.BytesReceived != 144 {
		t.Errorf("received = %d records / %d bytes, want 1 / 144", snap.RecordsReceived, snap.BytesReceived)
	}
	if snap.OpenErrors != 1 {
		t.Errorf("OpenErrors = %d, want 1", snap.OpenErrors)
	}
}

func TestObserverTraceSpans(t *testing.T) {
	tracer := NewSimpleTracer()
	o := NewChannelObserver(ChannelObserverConfig{
		Collector: NewCollector(nil),
		Tracer:    tracer,
		Logger:    NullLogger(),
		Role:      "client",
	})

	_, done := o.OnHandshakeStart(context.Background())
	done(nil)

	spans := tracer.Spans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != SpanHandshakeClient {
		t.Errorf("span name = %q, want %q", spans[0].Name, SpanHandshakeClient)
	}
	if spans[0].Error != nil {
		t.Errorf("span error = %v", spans[0].Error)
	}
}

func TestObserverFactoryRoles(t *testing.T) {
	c := NewCollector(nil)
	factory := ObserverFactory(c, NoOpTracer{}, NullLogger())

	client := factory("client")
	server := factory("server")
	if client == nil || server == nil {
		t.Fatal("factory returned nil observer")
	}

	client.OnChannelStart()
	server.OnChannelStart()
	if got := c.Snapshot().ChannelsTotal; got != 2 {
		t.Errorf("ChannelsTotal = %d, want 2", got)
	}
}
