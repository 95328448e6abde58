package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrValidation matches every ValidationError via errors.Is.
	ErrValidation = errors.New("cache: validation failed")

	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrKeyTooLong     = errors.New("cache: key exceeds max length")
	ErrInvalidTTL     = errors.New("cache: ttl must be positive")
	ErrInvalidPattern = errors.New("cache: pattern does not compile")
	ErrInvalidLevel   = errors.New("cache: compression level must be between 1 and 9")
	ErrInvalidBudget  = errors.New("cache: max memory must be positive")

	// ErrClosed is returned by mutating operations after Close.
	ErrClosed = errors.New("cache: store is closed")

	// ErrOversizedEntry describes the capacity anomaly: a single entry larger
	// than the whole memory budget was accepted and is resident alone.
	// It is a warning and is never returned as an operation error.
	ErrOversizedEntry = errors.New("cache: entry exceeds memory budget")
)

// ValidationError reports a malformed request rejected before any state
// change. Field names the offending input.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports ErrValidation so callers can classify without errors.As.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
