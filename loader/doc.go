// Package loader reads query results through a cache.
//
// A Loader looks a query up in a cache.Cache and, on a miss, fetches it from
// its origin exactly once per key no matter how many callers ask at the same
// time. Origin fetches are retried with backoff and may be rate limited. An
// optional circuit breaker stops calling an origin that keeps failing and
// returns ErrCircuitOpen until a trial load succeeds.
// Failed fetches are never cached, and queries tagged as mutations bypass
// the cache entirely.
//
// Basic usage:
//
//	store, _ := cache.New[[]Row](cache.Config{})
//	l, _ := loader.New[[]Row](store, loader.Config{})
//	rows, hit, err := l.Load(ctx, "users.by_team", params, nil,
//		func(ctx context.Context) ([]Row, error) { return db.UsersByTeam(ctx, params) })
package loader
