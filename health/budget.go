package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/querycache/cache"
)

// StatsSource is satisfied by *cache.Store.
type StatsSource interface {
	Name() string
	Stats(ctx context.Context) cache.Stats
}

// BudgetCheckerConfig configures the cache budget checker.
type BudgetCheckerConfig struct {
	// WarningThreshold is the fraction of the memory budget in use that
	// reports degraded. Value should be between 0 and 1. Default: 0.95
	WarningThreshold float64

	// MinHitRate is the hit-rate percentage below which the cache reports
	// degraded. Zero disables the check.
	MinHitRate float64

	// MinRequests is the number of lookups needed before MinHitRate applies.
	// Default: 100
	MinRequests uint64
}

// BudgetChecker reports on a cache store's memory budget and effectiveness.
type BudgetChecker struct {
	source StatsSource
	config BudgetCheckerConfig
}

// NewBudgetChecker creates a checker over source.
func NewBudgetChecker(source StatsSource, config BudgetCheckerConfig) *BudgetChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold > 1 {
		config.WarningThreshold = 0.95
	}
	if config.MinRequests == 0 {
		config.MinRequests = 100
	}
	return &BudgetChecker{source: source, config: config}
}

// Name returns "cache.<store>".
func (b *BudgetChecker) Name() string {
	return "cache." + b.source.Name()
}

// Check inspects the store statistics.
func (b *BudgetChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	st := b.source.Stats(ctx)

	var usage float64
	if st.MaxMemoryBytes > 0 {
		usage = float64(st.TotalMemoryBytes) / float64(st.MaxMemoryBytes)
	}

	details := map[string]any{
		"entries":           st.TotalEntries,
		"memory_bytes":      st.TotalMemoryBytes,
		"max_memory_bytes":  st.MaxMemoryBytes,
		"usage_percent":     usage * 100,
		"hit_rate":          st.HitRate,
		"evictions":         st.EvictionCount,
		"expired_entries":   st.ExpiredEntries,
		"compression_ratio": st.CompressionRatio,
	}

	var problems []string
	if st.Oversized {
		problems = append(problems, "oversized entry resident")
	}
	if !st.Oversized && usage >= b.config.WarningThreshold {
		problems = append(problems, fmt.Sprintf("memory usage high: %.1f%%", usage*100))
	}
	if b.config.MinHitRate > 0 && st.Hits+st.Misses >= b.config.MinRequests && st.HitRate < b.config.MinHitRate {
		problems = append(problems, fmt.Sprintf("hit rate low: %.1f%%", st.HitRate))
	}

	if len(problems) > 0 {
		return Degraded(strings.Join(problems, "; ")).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", usage*100)).WithDetails(details)
}
