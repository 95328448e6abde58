package cache

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dgraph-io/ristretto"

	"github.com/jonwraymond/querycache/observe"
)

// patternCache memoizes compiled invalidation patterns by source text.
type patternCache struct {
	cache *ristretto.Cache
}

func newPatternCache(size int64) (*patternCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &patternCache{cache: c}, nil
}

func (p *patternCache) compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, &ValidationError{Field: "pattern", Err: ErrInvalidPattern}
	}
	if v, ok := p.cache.Get(pattern); ok {
		if re, ok := v.(*regexp.Regexp); ok {
			return re, nil
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &ValidationError{
			Field: "pattern",
			Err:   fmt.Errorf("%w: %v", ErrInvalidPattern, err),
		}
	}

	// Admission is best-effort; a dropped Set only costs a recompile.
	p.cache.Set(pattern, re, 1)
	return re, nil
}

func (p *patternCache) close() {
	p.cache.Close()
}

// InvalidateByPattern removes every entry whose key matches the regular
// expression pattern and returns how many were removed. A pattern that does
// not compile is a ValidationError and leaves the store untouched.
//
// The pattern cache is only touched under s.mu, so Close cannot release it
// while a compile is in flight.
func (s *Store[V]) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}

	re, err := s.patterns.compile(pattern)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}

	n := 0
	for key, e := range s.entries {
		if re.MatchString(key) {
			s.removeLocked(e)
			n++
		}
	}
	s.mu.Unlock()

	if n > 0 {
		s.logger.Debug(ctx, "cache entries invalidated",
			observe.Field{Key: "store", Value: s.name},
			observe.Field{Key: "pattern", Value: pattern},
			observe.Field{Key: "removed", Value: n},
		)
	}
	return n, nil
}
