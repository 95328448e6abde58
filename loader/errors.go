package loader

import "errors"

// Sentinel errors for loader operations.
var (
	// ErrNilCache is returned by New when no cache is given.
	ErrNilCache = errors.New("loader: cache is nil")

	// ErrNilLoadFunc is returned when Load is called without an origin.
	ErrNilLoadFunc = errors.New("loader: load func is nil")

	// ErrInvalidRate is returned by New for a negative origin rate.
	ErrInvalidRate = errors.New("loader: origin rate must not be negative")

	// ErrRateLimited is returned when the origin rate limit cannot admit a
	// fetch before the load deadline.
	ErrRateLimited = errors.New("loader: origin rate limit exceeded")

	// ErrCircuitOpen is matched by the *CircuitOpenError returned while the
	// origin circuit rejects loads. It is never retried.
	ErrCircuitOpen = errors.New("loader: origin circuit is open")

	// ErrInvalidationUnsupported is returned by Invalidate when the cache
	// cannot remove entries by pattern.
	ErrInvalidationUnsupported = errors.New("loader: cache does not support pattern invalidation")
)
