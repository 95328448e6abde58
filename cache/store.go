package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/querycache/observe"
)

// DefaultMaxMemoryBytes is the memory budget used when Config leaves it unset.
const DefaultMaxMemoryBytes int64 = 100 << 20

// Config configures a Store.
type Config struct {
	// Name identifies the store in logs and telemetry.
	// Default: "default"
	Name string

	// MaxMemoryBytes is the ceiling on the summed size of all entries.
	// Default: 100 MiB
	MaxMemoryBytes int64

	// Policy selects TTLs for Set. A zero Policy means DefaultPolicy().
	Policy Policy

	// Codec packs entries during Compress. Nil simulates compression by
	// size accounting only.
	Codec Codec

	// PatternCacheSize bounds the number of memoized invalidation patterns.
	// Default: 256
	PatternCacheSize int64

	// Logger receives eviction, anomaly and codec events.
	// Default: no-op
	Logger observe.Logger

	// Clock returns the current time.
	// Default: time.Now
	Clock func() time.Time
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if c.MaxMemoryBytes < 0 {
		return &ValidationError{Field: "max_memory_bytes", Err: ErrInvalidBudget}
	}
	if c.Policy.DefaultTTL < 0 || c.Policy.MaxTTL < 0 {
		return &ValidationError{Field: "policy", Err: ErrInvalidTTL}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxMemoryBytes == 0 {
		c.MaxMemoryBytes = DefaultMaxMemoryBytes
	}
	if c.Policy == (Policy{}) {
		c.Policy = DefaultPolicy()
	}
	if c.PatternCacheSize <= 0 {
		c.PatternCacheSize = 256
	}
	if c.Logger == nil {
		c.Logger = observe.NewNopLogger()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Store is a memory-bounded LRU cache with lazy TTL expiry.
//
// One mutex guards the entry map, the recency list, the byte total and the
// lifetime counters, so a removal and its size subtraction are always a
// single step. The list front is the most recently used entry.
type Store[V any] struct {
	name     string
	maxBytes int64
	policy   Policy
	codec    Codec
	now      func() time.Time
	logger   observe.Logger
	patterns *patternCache

	mu      sync.Mutex
	entries map[string]*entry[V]
	lru     *list.List
	bytes   int64
	stats   counters
	closed  bool
}

// New creates a Store from cfg.
func New[V any](cfg Config) (*Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	patterns, err := newPatternCache(cfg.PatternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create pattern cache: %w", err)
	}

	return &Store[V]{
		name:     cfg.Name,
		maxBytes: cfg.MaxMemoryBytes,
		policy:   cfg.Policy,
		codec:    cfg.Codec,
		now:      cfg.Clock,
		logger:   cfg.Logger,
		patterns: patterns,
		entries:  make(map[string]*entry[V]),
		lru:      list.New(),
	}, nil
}

// Name returns the configured store name.
func (s *Store[V]) Name() string {
	return s.name
}

// Set creates or replaces the entry for key and enforces the memory budget.
//
// The returned Entry has Oversized set when the new entry alone exceeds the
// budget; such an entry is kept as the only resident and the condition is
// logged as a warning rather than returned as an error.
func (s *Store[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) (Entry, error) {
	if err := ValidateKey(key); err != nil {
		return Entry{}, err
	}
	ttl = s.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		return Entry{}, &ValidationError{Field: "ttl", Err: ErrInvalidTTL}
	}

	size := EstimateSize(value)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Entry{}, ErrClosed
	}

	if old, ok := s.entries[key]; ok {
		s.removeLocked(old)
	}

	now := s.now()
	e := &entry[V]{
		key:        key,
		value:      value,
		size:       size,
		createdAt:  now,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
	e.elem = s.lru.PushFront(e)
	s.entries[key] = e
	s.bytes += size

	victims := s.evictLocked(e)

	snap := e.snapshot()
	snap.Oversized = s.bytes > s.maxBytes
	used := s.bytes
	s.mu.Unlock()

	for _, v := range victims {
		s.logger.Debug(ctx, "cache entry evicted",
			observe.Field{Key: "store", Value: s.name},
			observe.Field{Key: "key", Value: v.Key},
			observe.Field{Key: "size_bytes", Value: v.SizeBytes},
		)
	}
	if snap.Oversized {
		s.logger.Warn(ctx, ErrOversizedEntry.Error(),
			observe.Field{Key: "store", Value: s.name},
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "size_bytes", Value: size},
			observe.Field{Key: "memory_bytes", Value: used},
			observe.Field{Key: "max_memory_bytes", Value: s.maxBytes},
		)
	}

	return snap, nil
}

// Get returns the value for key. A missing or expired key is a miss; an
// expired entry is removed on the way out.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.stats.misses++
		s.mu.Unlock()
		return zero, false
	}

	now := s.now()
	if e.expired(now) {
		s.removeLocked(e)
		s.stats.misses++
		s.mu.Unlock()
		return zero, false
	}

	value := e.value
	if e.packed != nil {
		v, err := s.unpack(e.packed)
		if err != nil {
			s.removeLocked(e)
			s.stats.misses++
			s.mu.Unlock()
			s.logger.Error(ctx, "cache entry decode failed",
				observe.Field{Key: "store", Value: s.name},
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return zero, false
		}
		value = v
	}

	e.hits++
	e.lastAccess = now
	s.lru.MoveToFront(e.elem)
	s.stats.hits++
	s.mu.Unlock()

	return value, true
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.removeLocked(e)
	return true
}

// Clear removes every entry and returns how many were removed. Lifetime
// counters are kept.
func (s *Store[V]) Clear(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]*entry[V])
	s.lru.Init()
	s.bytes = 0
	return n
}

// Len returns the number of resident entries, including expired ones not
// yet reaped.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// MemoryBytes returns the summed size of resident entries.
func (s *Store[V]) MemoryBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// MaxMemoryBytes returns the configured budget.
func (s *Store[V]) MaxMemoryBytes() int64 {
	return s.maxBytes
}

// Close releases the pattern cache. Subsequent Set, InvalidateByPattern and
// Compress calls return ErrClosed. Close is idempotent.
func (s *Store[V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.patterns.close()
}

// removeLocked drops e and subtracts its size. s.mu must be held.
func (s *Store[V]) removeLocked(e *entry[V]) {
	delete(s.entries, e.key)
	s.lru.Remove(e.elem)
	s.bytes -= e.size
}

var _ Cache[any] = (*Store[any])(nil)
