package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMiddleware(t *testing.T, buf *bytes.Buffer) (*Middleware, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, mp := newTestMeter(t)
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", buf)), recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestMiddleware_Success(t *testing.T) {
	var buf bytes.Buffer
	mw, recorder := newTestMiddleware(t, &buf)

	wrapped := mw.Wrap(func(ctx context.Context, op Operation) (Outcome, error) {
		return OutcomeHit, nil
	})

	outcome, err := wrapped(context.Background(), Operation{Store: "reports", Action: "get", Key: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeHit {
		t.Errorf("outcome = %q, want hit", outcome)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "cache.reports.get" {
		t.Errorf("span name = %q, want cache.reports.get", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}
	if v, ok := spanAttr(spans[0], "cache.outcome"); !ok || v.AsString() != "hit" {
		t.Errorf("cache.outcome attribute = %v, want hit", v.AsString())
	}
	if v, ok := spanAttr(spans[0], "cache.key"); !ok || v.AsString() != "a" {
		t.Errorf("cache.key attribute = %v, want a", v.AsString())
	}

	if !strings.Contains(buf.String(), `"level":"debug"`) {
		t.Errorf("expected debug log line, got %s", buf.String())
	}
}

func TestMiddleware_Rejected(t *testing.T) {
	var buf bytes.Buffer
	mw, recorder := newTestMiddleware(t, &buf)
	want := errors.New("pattern does not compile")

	wrapped := mw.Wrap(func(ctx context.Context, op Operation) (Outcome, error) {
		return OutcomeRejected, want
	})

	_, err := wrapped(context.Background(), Operation{Action: "invalidate"})
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %+v", spans)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("rejected request should log at warn, got %s", buf.String())
	}
}

func TestMiddleware_ErrorWithoutOutcome(t *testing.T) {
	var buf bytes.Buffer
	mw, _ := newTestMiddleware(t, &buf)

	wrapped := mw.Wrap(func(ctx context.Context, op Operation) (Outcome, error) {
		return "", errors.New("boom")
	})

	outcome, _ := wrapped(context.Background(), Operation{Action: "set"})
	if outcome != OutcomeError {
		t.Errorf("outcome = %q, want error", outcome)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("failure should log at error, got %s", buf.String())
	}
}

func TestMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	outcome, err := mw.Wrap(func(ctx context.Context, op Operation) (Outcome, error) {
		return OutcomeOK, nil
	})(context.Background(), Operation{Action: "stats"})
	if err != nil || outcome != OutcomeOK {
		t.Fatalf("got (%q, %v), want (ok, nil)", outcome, err)
	}
}

func TestMiddlewareFromObserver_Nil(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("error = %v, want ErrNilObserver", err)
	}
}
