// Package observe provides logging, tracing and metrics for cache operations.
//
// It is a pure instrumentation library: it never touches cache state. The
// dispatch layer wraps each request with Middleware, and stores report
// their resident totals through RegisterStoreMetrics.
package observe
