package loader

import "strings"

// SkipRule reports whether a query must bypass the cache.
type SkipRule func(query string, tags []string) bool

// MutationTags mark queries with side effects; their results are never cached.
var MutationTags = []string{"write", "mutation", "insert", "update", "delete", "ddl"}

// DefaultSkipRule skips queries carrying any of MutationTags.
// Tag matching is case-insensitive.
func DefaultSkipRule(_ string, tags []string) bool {
	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		for _, m := range MutationTags {
			if tagLower == m {
				return true
			}
		}
	}
	return false
}
