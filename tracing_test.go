package replica

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/replica/store"
)

func tracedConn(t *testing.T, conn store.Connection) (store.Connection, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return Wrap(conn, NewChain(NewTracing(tp)), storeRegistry(t), WithSource("node-1")), recorder
}

func attrsOf(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_Span(t *testing.T) {
	conn, recorder := tracedConn(t, store.NewMemory())

	if err := conn.Set(context.Background(), []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "store.set" {
		t.Errorf("Name() = %q, want store.set", span.Name())
	}
	if span.SpanKind() != trace.SpanKindClient {
		t.Errorf("SpanKind() = %v, want client", span.SpanKind())
	}
	attrs := attrsOf(span.Attributes())
	if attrs["replica.method"].AsString() != "set" {
		t.Errorf("replica.method = %v", attrs["replica.method"])
	}
	if attrs["replica.interface"].AsString() != connectionInterface {
		t.Errorf("replica.interface = %v", attrs["replica.interface"])
	}
	if !attrs["replica.registered"].AsBool() {
		t.Error("replica.registered should be true for set")
	}
	if attrs["replica.source"].AsString() != "node-1" {
		t.Errorf("replica.source = %v", attrs["replica.source"])
	}
	if span.Status().Code == codes.Error {
		t.Error("successful call recorded an error status")
	}
}

func TestTracing_Unregistered(t *testing.T) {
	conn, recorder := tracedConn(t, store.NewMemory())

	_, _ = conn.Get(context.Background(), []byte("k"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended %d spans, want 1", len(spans))
	}
	if attrsOf(spans[0].Attributes())["replica.registered"].AsBool() {
		t.Error("replica.registered should be false for get")
	}
}

func TestTracing_Error(t *testing.T) {
	failure := errors.New("connection reset")
	conn, recorder := tracedConn(t, &faultyConn{Memory: store.NewMemory(), err: failure})

	if err := conn.Set(context.Background(), []byte("k"), []byte("v")); !errors.Is(err, failure) {
		t.Fatalf("Set() error = %v, want %v", err, failure)
	}

	span := recorder.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("Status() = %v, want error", span.Status())
	}
	if span.Status().Description != failure.Error() {
		t.Errorf("Description = %q", span.Status().Description)
	}
	if len(span.Events()) == 0 {
		t.Error("RecordError should add an exception event")
	}
}

func TestTracing_AfterWithoutSpan(t *testing.T) {
	tr := NewTracing(nil)
	if err := tr.AfterExecute(context.Background(), &Invocation{}, nil, nil); err != nil {
		t.Errorf("AfterExecute() error: %v", err)
	}
	if tr.Name() != "tracing" || tr.Priority() != TracingPriority {
		t.Errorf("Name/Priority = %s/%d", tr.Name(), tr.Priority())
	}
}
