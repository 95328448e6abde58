package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-operation cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one cache operation.
	RecordOperation(ctx context.Context, op Operation, duration time.Duration, outcome Outcome, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the operation instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"cache.op.total",
		metric.WithDescription("Total number of cache operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.op.errors",
		metric.WithDescription("Total number of rejected or failed cache operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.op.duration_ms",
		metric.WithDescription("Cache operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, op Operation, duration time.Duration, outcome Outcome, err error) {
	attrs := append(op.attributes(), attribute.String("cache.outcome", string(outcome)))
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(context.Context, Operation, time.Duration, Outcome, error) {}

// StoreTotals are the resident and lifetime figures of one store.
type StoreTotals struct {
	Entries        int64
	MemoryBytes    int64
	MaxMemoryBytes int64
	Hits           uint64
	Misses         uint64
	Evictions      uint64
}

// TotalsFunc reports the current totals of a store. It is called on every
// metrics collection and must be cheap.
type TotalsFunc func() StoreTotals

// RegisterStoreMetrics publishes a store's totals as observable instruments:
// gauges cache.entries, cache.memory_bytes, cache.max_memory_bytes and
// counters cache.hits, cache.misses, cache.evictions. Unregister the
// returned registration when the store is closed.
func RegisterStoreMetrics(meter metric.Meter, store string, totals TotalsFunc) (metric.Registration, error) {
	if totals == nil {
		return nil, errors.New("observe: totals func is nil")
	}

	entries, err := meter.Int64ObservableGauge("cache.entries",
		metric.WithDescription("Resident cache entries"), metric.WithUnit("{entry}"))
	if err != nil {
		return nil, err
	}
	memory, err := meter.Int64ObservableGauge("cache.memory_bytes",
		metric.WithDescription("Estimated bytes held by resident entries"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	budget, err := meter.Int64ObservableGauge("cache.max_memory_bytes",
		metric.WithDescription("Configured memory budget"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64ObservableCounter("cache.hits",
		metric.WithDescription("Lifetime cache hits"), metric.WithUnit("{hit}"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64ObservableCounter("cache.misses",
		metric.WithDescription("Lifetime cache misses"), metric.WithUnit("{miss}"))
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64ObservableCounter("cache.evictions",
		metric.WithDescription("Lifetime LRU evictions"), metric.WithUnit("{eviction}"))
	if err != nil {
		return nil, err
	}

	opt := metric.WithAttributes(attribute.String("cache.store", Operation{Store: store}.StoreName()))

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		t := totals()
		o.ObserveInt64(entries, t.Entries, opt)
		o.ObserveInt64(memory, t.MemoryBytes, opt)
		o.ObserveInt64(budget, t.MaxMemoryBytes, opt)
		o.ObserveInt64(hits, int64(t.Hits), opt)
		o.ObserveInt64(misses, int64(t.Misses), opt)
		o.ObserveInt64(evictions, int64(t.Evictions), opt)
		return nil
	}, entries, memory, budget, hits, misses, evictions)
}
