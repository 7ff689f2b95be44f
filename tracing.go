package replica

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingPriority runs Tracing before every other interceptor so its span
// covers their before hooks.
const TracingPriority = -1000

const tracerName = "github.com/zoobzio/replica"

type spanKey struct{}

// Tracing records one client span per intercepted call.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates the tracing interceptor. A nil provider uses the global one.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

func (t *Tracing) Name() string  { return "tracing" }
func (t *Tracing) Priority() int { return TracingPriority }

func (t *Tracing) BeforeExecute(ctx context.Context, inv *Invocation) error {
	_, span := t.tracer.Start(ctx, "store."+inv.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("replica.interface", inv.Interface),
			attribute.String("replica.method", inv.Method),
			attribute.Bool("replica.registered", inv.Registered()),
		),
	)
	if inv.Source != "" {
		span.SetAttributes(attribute.String("replica.source", inv.Source))
	}
	inv.Set(spanKey{}, span)
	return nil
}

func (t *Tracing) AfterExecute(_ context.Context, inv *Invocation, _ any, failure error) error {
	v, ok := inv.Get(spanKey{})
	if !ok {
		return nil
	}
	span := v.(trace.Span)
	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	}
	span.End()
	return nil
}
