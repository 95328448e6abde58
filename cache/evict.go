package cache

// evictLocked removes least recently used entries until the budget holds.
// keep is the entry that triggered eviction and is never chosen; when it is
// the last resident the loop stops with the store over budget. Entries with
// equal access times leave in list order, which is the order they were last
// touched. s.mu must be held.
func (s *Store[V]) evictLocked(keep *entry[V]) []Entry {
	var victims []Entry
	for s.bytes > s.maxBytes {
		back := s.lru.Back()
		if back == nil {
			break
		}
		victim := back.Value.(*entry[V])
		if victim == keep {
			break
		}
		s.removeLocked(victim)
		s.stats.evictions++
		victims = append(victims, victim.snapshot())
	}
	return victims
}
