package cache

import (
	"context"
	"sort"
	"time"
)

// counters are lifetime totals; they only grow. Guarded by Store.mu.
type counters struct {
	hits      uint64
	misses    uint64
	evictions uint64
}

// rates returns hit and miss percentages, both 0 before any request.
func (c counters) rates() (hit, miss float64) {
	total := c.hits + c.misses
	if total == 0 {
		return 0, 0
	}
	return float64(c.hits) / float64(total) * 100, float64(c.misses) / float64(total) * 100
}

// Stats is a point-in-time view of a Store.
type Stats struct {
	TotalEntries     int   `json:"total_entries"`
	TotalMemoryBytes int64 `json:"total_memory_bytes"`
	MaxMemoryBytes   int64 `json:"max_memory_bytes"`

	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	EvictionCount uint64  `json:"eviction_count"`
	HitRate       float64 `json:"hit_rate"`
	MissRate      float64 `json:"miss_rate"`

	// CompressionRatio is the mean ratio over compressed entries, 1.0 if none.
	CompressionRatio float64 `json:"compression_ratio"`
	AvgTTLSeconds    float64 `json:"avg_ttl_seconds"`

	OldestEntry time.Time `json:"oldest_entry"`
	NewestEntry time.Time `json:"newest_entry"`

	// ExpiredEntries counts stale entries that have not been reaped.
	ExpiredEntries int `json:"expired_entries"`

	// Oversized reports the capacity anomaly: one resident entry larger
	// than the budget.
	Oversized bool `json:"oversized"`
}

// Stats computes a snapshot without removing anything.
func (s *Store[V]) Stats(_ context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{
		TotalEntries:     len(s.entries),
		TotalMemoryBytes: s.bytes,
		MaxMemoryBytes:   s.maxBytes,
		Hits:             s.stats.hits,
		Misses:           s.stats.misses,
		EvictionCount:    s.stats.evictions,
		CompressionRatio: 1.0,
		OldestEntry:      now,
		NewestEntry:      now,
		Oversized:        s.bytes > s.maxBytes,
	}
	st.HitRate, st.MissRate = s.stats.rates()

	if len(s.entries) == 0 {
		return st
	}

	var (
		ratioSum   float64
		compressed int
		ttlSum     float64
		first      = true
	)
	for _, e := range s.entries {
		if e.compressed {
			ratioSum += e.ratio
			compressed++
		}
		ttlSum += e.expiresAt.Sub(e.createdAt).Seconds()
		if e.expired(now) {
			st.ExpiredEntries++
		}
		if first || e.createdAt.Before(st.OldestEntry) {
			st.OldestEntry = e.createdAt
		}
		if first || e.createdAt.After(st.NewestEntry) {
			st.NewestEntry = e.createdAt
		}
		first = false
	}

	if compressed > 0 {
		st.CompressionRatio = ratioSum / float64(compressed)
	}
	st.AvgTTLSeconds = ttlSum / float64(len(s.entries))

	return st
}

// List returns metadata for every resident entry sorted by key. Stale
// entries are included with Expired set.
func (s *Store[V]) List(_ context.Context) []Entry {
	s.mu.Lock()
	now := s.now()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		snap := e.snapshot()
		snap.Expired = e.expired(now)
		out = append(out, snap)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
