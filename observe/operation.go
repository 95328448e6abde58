package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Outcome classifies how a cache operation ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeHit      Outcome = "hit"
	OutcomeMiss     Outcome = "miss"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// Operation describes one cache request for telemetry purposes.
type Operation struct {
	Store  string // store name; "default" when empty
	Action string // set|get|delete|invalidate|stats|clear|compress|list (required)
	Key    string // entry key, when the action has one
}

// StoreName returns the store name, defaulting to "default".
func (o Operation) StoreName() string {
	if o.Store == "" {
		return "default"
	}
	return o.Store
}

// SpanName returns the deterministic span name: cache.<store>.<action>.
func (o Operation) SpanName() string {
	return "cache." + o.StoreName() + "." + o.Action
}

func (o Operation) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cache.store", o.StoreName()),
		attribute.String("cache.action", o.Action),
	}
}

// Tracer wraps OpenTelemetry tracing with cache-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a cache operation.
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a span carrying the operation as attributes. The key is
// attached only for single-key actions.
func (t *tracerImpl) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	attrs := op.attributes()
	if op.Key != "" {
		attrs = append(attrs, attribute.String("cache.key", op.Key))
	}

	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("cache.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NewNoopTracer returns a tracer that records nothing.
func NewNoopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
