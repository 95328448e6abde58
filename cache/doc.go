// Package cache provides an in-process, memory-bounded query-result cache.
//
// A Store keeps key-addressed entries with a time-to-live, evicts the least
// recently used entries once the estimated size of all entries exceeds the
// configured budget, removes entries in bulk by regular expression, and
// tracks lifetime hit, miss and eviction counters. Expiry is lazy: a stale
// entry is only removed when it is read, overwritten, deleted or evicted.
//
// Entry sizes are estimates (see EstimateSize). Compress shrinks the
// accounted size of resident entries, either by simulation or through a real
// Codec such as BrotliCodec or ZstdCodec; compressed entries stay readable
// through Get.
package cache
