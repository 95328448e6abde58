package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"

	"github.com/jonwraymond/querycache/dispatch"
	"github.com/jonwraymond/querycache/health"
	"github.com/jonwraymond/querycache/observe"
)

// NewRouter builds the HTTP handler for d. agg may be nil, in which case
// readiness and detailed health always report healthy.
func NewRouter(d *dispatch.Dispatcher, agg *health.Aggregator, logger observe.Logger, cfg Config) (*chi.Mux, error) {
	cfg.applyDefaults()
	if agg == nil {
		agg = health.NewAggregator()
	}
	if logger == nil {
		logger = observe.NewNopLogger()
	}

	metrics, err := newHTTPMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	h := &handler{
		dispatcher:   d,
		logger:       logger,
		render:       render.New(),
		maxBodyBytes: cfg.MaxBodyBytes,
	}

	mux := chi.NewRouter()

	mux.Use(chiMiddleware.RequestID)
	mux.Use(chiMiddleware.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(chiMiddleware.Recoverer)
	mux.Use(metrics.instrument)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	mux.Get("/healthz", health.LivenessHandler())
	mux.Get("/readyz", health.ReadinessHandler(agg))
	mux.Get("/health", health.DetailedHandler(agg))
	mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	mux.Route("/v1/cache", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))
		r.Post("/", h.dispatch)
		r.Get("/stats", h.stats)
		r.Get("/entries", h.list)
		r.Get("/entries/{key}", h.get)
		r.Delete("/entries/{key}", h.delete)
	})

	return mux, nil
}

// requestLogger logs one line per request at info, or warn for 5xx.
func requestLogger(logger observe.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			fields := []observe.Field{
				{Key: "method", Value: r.Method},
				{Key: "path", Value: r.URL.Path},
				{Key: "status", Value: ww.Status()},
				{Key: "bytes", Value: ww.BytesWritten()},
				{Key: "duration_ms", Value: float64(time.Since(start).Microseconds()) / 1000},
				{Key: "request_id", Value: chiMiddleware.GetReqID(r.Context())},
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "http request failed", fields...)
				return
			}
			logger.Info(r.Context(), "http request", fields...)
		})
	}
}
