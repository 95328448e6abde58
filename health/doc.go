// Package health reports whether a query cache is fit to serve.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// BudgetChecker inspects a cache store's statistics: an oversized resident
// entry, usage close to the memory budget, or a hit rate below a floor all
// degrade the service without taking it out of rotation. An Aggregator runs
// several checkers concurrently and folds their results into one status.
//
// The HTTP handlers follow the usual probe split:
//
//	r.Get("/healthz", health.LivenessHandler())
//	r.Get("/readyz", health.ReadinessHandler(agg))
//	r.Get("/health", health.DetailedHandler(agg))
package health
