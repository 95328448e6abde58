package cache

import (
	"context"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Cache is the key-value surface of a Store used by read-through callers.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (zero, false) on miss or expiry.
// - Delete is idempotent and reports whether an entry was removed.
type Cache[V any] interface {
	// Get retrieves a cached value. Returns (zero, false) on miss.
	Get(ctx context.Context, key string) (V, bool)

	// Set stores a value with the given TTL. A non-positive TTL selects the
	// store's default TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) (Entry, error)

	// Delete removes a cached value.
	Delete(ctx context.Context, key string) bool
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return &ValidationError{Field: "key", Err: ErrInvalidKey}
	}
	if len(key) > MaxKeyLength {
		return &ValidationError{Field: "key", Err: ErrKeyTooLong}
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return &ValidationError{Field: "key", Err: ErrInvalidKey}
	}
	return nil
}
