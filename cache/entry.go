package cache

import (
	"container/list"
	"time"
)

// Entry is the metadata snapshot of a cached value. The value itself is
// never part of a snapshot.
type Entry struct {
	Key          string    `json:"key"`
	SizeBytes    int64     `json:"size_bytes"`
	TTLSeconds   float64   `json:"ttl_seconds"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastAccessAt time.Time `json:"last_access_at"`
	HitCount     uint64    `json:"hit_count"`
	Compressed   bool      `json:"compressed"`

	// CompressionRatio is newSize/oldSize; set only when Compressed.
	CompressionRatio float64 `json:"compression_ratio,omitempty"`

	// Expired marks a stale entry that has not been reaped yet (List only).
	Expired bool `json:"expired,omitempty"`

	// Oversized marks a Set whose entry alone exceeds the memory budget.
	Oversized bool `json:"oversized,omitempty"`
}

// TTL returns the entry's time-to-live.
func (e Entry) TTL() time.Duration {
	return e.ExpiresAt.Sub(e.CreatedAt)
}

// entry is the resident form of a value. expiresAt never changes after
// creation; Set on an existing key replaces the whole entry.
type entry[V any] struct {
	key       string
	value     V
	packed    []byte // codec output; value is zero when set
	size      int64
	createdAt time.Time
	expiresAt time.Time

	hits       uint64
	lastAccess time.Time
	compressed bool
	ratio      float64

	elem *list.Element
}

func (e *entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

func (e *entry[V]) snapshot() Entry {
	s := Entry{
		Key:          e.key,
		SizeBytes:    e.size,
		TTLSeconds:   e.expiresAt.Sub(e.createdAt).Seconds(),
		CreatedAt:    e.createdAt,
		ExpiresAt:    e.expiresAt,
		LastAccessAt: e.lastAccess,
		HitCount:     e.hits,
		Compressed:   e.compressed,
	}
	if e.compressed {
		s.CompressionRatio = e.ratio
	}
	return s
}
