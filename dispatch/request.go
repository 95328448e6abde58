package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jonwraymond/querycache/cache"
)

// Action names a cache operation.
type Action string

const (
	ActionSet        Action = "set"
	ActionGet        Action = "get"
	ActionDelete     Action = "delete"
	ActionInvalidate Action = "invalidate"
	ActionStats      Action = "stats"
	ActionClear      Action = "clear"
	ActionCompress   Action = "compress"
	ActionList       Action = "list"
)

// Actions lists every valid action.
var Actions = []Action{
	ActionSet, ActionGet, ActionDelete, ActionInvalidate,
	ActionStats, ActionClear, ActionCompress, ActionList,
}

// Valid reports whether a is one of Actions.
func (a Action) Valid() bool {
	return slices.Contains(Actions, a)
}

func (a Action) needsKey() bool {
	return a == ActionSet || a == ActionGet || a == ActionDelete
}

// Request is one cache operation.
type Request struct {
	Action           Action  `json:"action"`
	Key              string  `json:"key,omitempty"`
	Value            any     `json:"value,omitempty"`
	TTLSeconds       float64 `json:"ttl_seconds,omitempty"`
	Pattern          string  `json:"pattern,omitempty"`
	CompressionLevel int     `json:"compression_level,omitempty"`
}

// TTL converts TTLSeconds; zero selects the store default. Values beyond the
// Duration range saturate so the store policy caps them at MaxTTL.
func (r *Request) TTL() time.Duration {
	ns := r.TTLSeconds * float64(time.Second)
	if ns >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// Level returns the compression level, DefaultCompressionLevel when unset.
func (r *Request) Level() int {
	if r.CompressionLevel == 0 {
		return cache.DefaultCompressionLevel
	}
	return r.CompressionLevel
}

// ValidateWithContext checks the request shape. Failures are returned as
// *cache.ValidationError.
func (r *Request) ValidateWithContext(ctx context.Context) error {
	actions := make([]any, len(Actions))
	for i, a := range Actions {
		actions[i] = a
	}

	err := validation.ValidateStructWithContext(ctx, r,
		validation.Field(&r.Action, validation.Required, validation.In(actions...)),
		validation.Field(&r.Key, validation.When(r.Action.needsKey(), validation.Required)),
		validation.Field(&r.Pattern, validation.When(r.Action == ActionInvalidate, validation.Required)),
		validation.Field(&r.TTLSeconds, validation.Min(0.0)),
		validation.Field(&r.CompressionLevel,
			validation.Min(cache.MinCompressionLevel),
			validation.Max(cache.MaxCompressionLevel),
		),
	)
	if err != nil {
		return toValidationError(err)
	}
	return nil
}

// fieldCauses maps request fields to the sentinel reported for them.
var fieldCauses = map[string]error{
	"action":            ErrInvalidAction,
	"key":               cache.ErrInvalidKey,
	"pattern":           cache.ErrInvalidPattern,
	"ttl_seconds":       cache.ErrInvalidTTL,
	"compression_level": cache.ErrInvalidLevel,
}

// toValidationError reports the first failing field in fieldCauses order.
func toValidationError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return &cache.ValidationError{Field: "request", Err: err}
	}

	for _, field := range []string{"action", "key", "pattern", "ttl_seconds", "compression_level"} {
		if fieldErr, ok := errs[field]; ok {
			return &cache.ValidationError{
				Field: field,
				Err:   fmt.Errorf("%w: %s %v", fieldCauses[field], field, fieldErr),
			}
		}
	}
	return &cache.ValidationError{Field: "request", Err: err}
}
