package dispatch

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
)

// Dispatcher runs Requests against one store.
type Dispatcher struct {
	store *cache.Store[any]
	mw    *observe.Middleware
}

// New creates a Dispatcher. A nil middleware records nothing.
func New(store *cache.Store[any], mw *observe.Middleware) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, nil)
	}
	return &Dispatcher{store: store, mw: mw}, nil
}

// Store returns the underlying store.
func (d *Dispatcher) Store() *cache.Store[any] {
	return d.store
}

// Handle validates and executes req. Invalid requests are answered with
// success false and the validation error; the store is not touched.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	resp, _ := d.Do(ctx, req)
	return resp
}

// Do is Handle that also returns the error behind a failed response, so
// transports can tell a rejected request (cache.IsValidation) from a store
// failure. Soft misses return a nil error.
func (d *Dispatcher) Do(ctx context.Context, req Request) (Response, error) {
	op := observe.Operation{
		Store:  d.store.Name(),
		Action: string(req.Action),
		Key:    req.Key,
	}
	if !req.Action.Valid() {
		op.Action = "invalid"
	}

	var resp Response
	run := d.mw.Wrap(func(ctx context.Context, _ observe.Operation) (observe.Outcome, error) {
		if err := req.ValidateWithContext(ctx); err != nil {
			resp = failure(err)
			return observe.OutcomeRejected, err
		}

		var (
			outcome observe.Outcome
			err     error
		)
		resp, outcome, err = d.execute(ctx, req)
		if err != nil {
			resp = failure(err)
			if cache.IsValidation(err) {
				return observe.OutcomeRejected, err
			}
			return observe.OutcomeError, err
		}
		return outcome, nil
	})
	_, err := run(ctx, op)

	return resp, err
}

func (d *Dispatcher) execute(ctx context.Context, req Request) (Response, observe.Outcome, error) {
	switch req.Action {
	case ActionSet:
		entry, err := d.store.Set(ctx, req.Key, req.Value, req.TTL())
		if err != nil {
			return Response{}, "", err
		}
		resp := Response{Success: true, Payload: entry}
		if entry.Oversized {
			resp.Warning = cache.ErrOversizedEntry.Error()
		}
		return resp, observe.OutcomeOK, nil

	case ActionGet:
		value, ok := d.store.Get(ctx, req.Key)
		if !ok {
			return Response{Payload: GetPayload{}}, observe.OutcomeMiss, nil
		}
		return Response{Success: true, Payload: GetPayload{Cached: true, Value: value}}, observe.OutcomeHit, nil

	case ActionDelete:
		if !d.store.Delete(ctx, req.Key) {
			return Response{Payload: DeletePayload{}}, observe.OutcomeMiss, nil
		}
		return Response{Success: true, Payload: DeletePayload{Removed: true}}, observe.OutcomeOK, nil

	case ActionInvalidate:
		n, err := d.store.InvalidateByPattern(ctx, req.Pattern)
		if err != nil {
			return Response{}, "", err
		}
		return Response{Success: true, Payload: RemovedPayload{Removed: n}}, observe.OutcomeOK, nil

	case ActionClear:
		n := d.store.Clear(ctx)
		return Response{Success: true, Payload: RemovedPayload{Removed: n}}, observe.OutcomeOK, nil

	case ActionCompress:
		n, err := d.store.Compress(ctx, req.Level())
		if err != nil {
			return Response{}, "", err
		}
		return Response{Success: true, Payload: CompressPayload{Compressed: n}}, observe.OutcomeOK, nil

	case ActionStats:
		return Response{Success: true, Payload: d.store.Stats(ctx)}, observe.OutcomeOK, nil

	case ActionList:
		return Response{Success: true, Payload: d.store.List(ctx)}, observe.OutcomeOK, nil
	}

	// Unreachable after validation.
	return Response{}, "", &cache.ValidationError{Field: "action", Err: ErrInvalidAction}
}

// RegisterMetrics publishes the store's entry, memory and counter totals as
// observable instruments on meter.
func (d *Dispatcher) RegisterMetrics(meter metric.Meter) (metric.Registration, error) {
	return observe.RegisterStoreMetrics(meter, d.store.Name(), func() observe.StoreTotals {
		st := d.store.Stats(context.Background())
		return observe.StoreTotals{
			Entries:        int64(st.TotalEntries),
			MemoryBytes:    st.TotalMemoryBytes,
			MaxMemoryBytes: st.MaxMemoryBytes,
			Hits:           st.Hits,
			Misses:         st.Misses,
			Evictions:      st.EvictionCount,
		}
	})
}
