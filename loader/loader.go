package loader

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
)

// LoadFunc fetches a query result from its origin.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// Invalidator is implemented by caches that can drop entries by key pattern,
// such as *cache.Store.
type Invalidator interface {
	InvalidateByPattern(ctx context.Context, pattern string) (int, error)
}

// Config configures a Loader.
type Config struct {
	// Keyer derives cache keys from query and params.
	// Default: cache.DefaultKeyer
	Keyer cache.Keyer

	// TTL is passed to Set. Zero selects the cache's default TTL.
	TTL time.Duration

	// SkipRule decides which queries bypass the cache.
	// Default: DefaultSkipRule
	SkipRule SkipRule

	// Retry configures origin retries.
	Retry RetryConfig

	// Circuit enables a breaker around origin fetches, retries included.
	// Nil disables it.
	Circuit *CircuitConfig

	// OriginRate limits origin fetches per second. Zero means unlimited.
	OriginRate float64

	// OriginBurst is the limiter burst size.
	// Default: 1
	OriginBurst int

	// Timeout bounds one shared origin load, including retries.
	// Default: 30s
	Timeout time.Duration

	// Logger receives load events.
	// Default: no-op
	Logger observe.Logger
}

// Loader is a read-through cache front for one value type.
type Loader[V any] struct {
	cache    cache.Cache[V]
	keyer    cache.Keyer
	ttl      time.Duration
	skipRule SkipRule
	retry    *retrier
	breaker  *circuitBreaker
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   observe.Logger

	group singleflight.Group
}

// New creates a Loader over c.
func New[V any](c cache.Cache[V], cfg Config) (*Loader[V], error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if cfg.OriginRate < 0 {
		return nil, fmt.Errorf("%w: got %f", ErrInvalidRate, cfg.OriginRate)
	}
	if cfg.Keyer == nil {
		cfg.Keyer = cache.NewDefaultKeyer()
	}
	if cfg.SkipRule == nil {
		cfg.SkipRule = DefaultSkipRule
	}
	if cfg.OriginBurst <= 0 {
		cfg.OriginBurst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}

	l := &Loader[V]{
		cache:    c,
		keyer:    cfg.Keyer,
		ttl:      cfg.TTL,
		skipRule: cfg.SkipRule,
		retry:    newRetrier(cfg.Retry),
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
	if cfg.Circuit != nil {
		l.breaker = newCircuitBreaker(l.circuitConfig(*cfg.Circuit))
	}
	if cfg.OriginRate > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.OriginRate), cfg.OriginBurst)
	}
	return l, nil
}

// Load returns the result of query with params, from the cache when present.
// hit reports whether the value came from the cache. Queries that the skip
// rule rejects, or whose params cannot be keyed, go straight to the origin.
func (l *Loader[V]) Load(ctx context.Context, query string, params any, tags []string, fn LoadFunc[V]) (value V, hit bool, err error) {
	if fn == nil {
		return value, false, ErrNilLoadFunc
	}

	if l.skipRule(query, tags) {
		value, err = l.fetch(ctx, fn)
		return value, false, err
	}

	key, err := l.keyer.Key(query, params)
	if err != nil {
		l.logger.Debug(ctx, "query not cacheable",
			observe.Field{Key: "query", Value: query},
			observe.Field{Key: "error", Value: err.Error()},
		)
		value, err = l.fetch(ctx, fn)
		return value, false, err
	}

	return l.LoadKey(ctx, key, fn)
}

// LoadKey is Load for a caller-supplied key. Concurrent misses on the same
// key share one origin fetch; a caller whose ctx ends stops waiting without
// cancelling the shared fetch.
func (l *Loader[V]) LoadKey(ctx context.Context, key string, fn LoadFunc[V]) (value V, hit bool, err error) {
	if fn == nil {
		return value, false, ErrNilLoadFunc
	}
	if v, ok := l.cache.Get(ctx, key); ok {
		return v, true, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		v, err := l.fetch(loadCtx, fn)
		if err != nil {
			return nil, err
		}

		if _, err := l.cache.Set(loadCtx, key, v, l.ttl); err != nil {
			l.logger.Warn(loadCtx, "loaded value not cached",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return value, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return value, false, res.Err
		}
		value, _ = res.Val.(V)
		return value, false, nil
	}
}

// Invalidate drops every cached result of query. The cache must implement
// Invalidator.
func (l *Loader[V]) Invalidate(ctx context.Context, query string) (int, error) {
	inv, ok := l.cache.(Invalidator)
	if !ok {
		return 0, ErrInvalidationUnsupported
	}
	return inv.InvalidateByPattern(ctx, l.keyer.Pattern(query))
}

// CircuitState reports the origin breaker state; CircuitClosed when no
// breaker is configured.
func (l *Loader[V]) CircuitState() CircuitState {
	if l.breaker == nil {
		return CircuitClosed
	}
	return l.breaker.currentState()
}

// circuitConfig logs transitions before handing them to the caller's hook.
func (l *Loader[V]) circuitConfig(cfg CircuitConfig) CircuitConfig {
	hook := cfg.OnStateChange
	cfg.OnStateChange = func(from, to CircuitState) {
		fields := []observe.Field{
			{Key: "from", Value: from.String()},
			{Key: "to", Value: to.String()},
		}
		if to == CircuitOpen {
			l.logger.Warn(context.Background(), "origin circuit opened", fields...)
		} else {
			l.logger.Info(context.Background(), "origin circuit state changed", fields...)
		}
		if hook != nil {
			hook(from, to)
		}
	}
	return cfg
}

func (l *Loader[V]) fetch(ctx context.Context, fn LoadFunc[V]) (V, error) {
	var value V
	load := func(ctx context.Context) error {
		return l.retry.execute(ctx, func(ctx context.Context) error {
			if l.limiter != nil {
				if err := l.limiter.Wait(ctx); err != nil {
					return fmt.Errorf("%w: %v", ErrRateLimited, err)
				}
			}
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
	}

	var err error
	if l.breaker != nil {
		err = l.breaker.execute(ctx, load)
	} else {
		err = load(ctx)
	}
	return value, err
}
