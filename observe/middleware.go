package observe

import (
	"context"
	"time"
)

// OperationFunc executes one cache operation and classifies its outcome.
type OperationFunc func(ctx context.Context, op Operation) (Outcome, error)

// Middleware wraps cache operations with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe OperationFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by
// no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap instruments fn. Successful operations log at debug, rejected ones at
// warn and failed ones at error.
func (m *Middleware) Wrap(fn OperationFunc) OperationFunc {
	return func(ctx context.Context, op Operation) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		outcome, err := fn(ctx, op)
		if err != nil && outcome == "" {
			outcome = OutcomeError
		}

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordOperation(ctx, op, duration, outcome, err)

		opLogger := m.logger.WithOperation(op)
		fields := []Field{
			{Key: "outcome", Value: string(outcome)},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}

		switch {
		case err != nil && outcome == OutcomeRejected:
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			opLogger.Warn(ctx, "cache request rejected", fields...)
		case err != nil:
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			opLogger.Error(ctx, "cache operation failed", fields...)
		default:
			opLogger.Debug(ctx, "cache operation completed", fields...)
		}

		return outcome, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
