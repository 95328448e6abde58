// Command querycached serves a query-result cache over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/dispatch"
	"github.com/jonwraymond/querycache/health"
	"github.com/jonwraymond/querycache/observe"
	"github.com/jonwraymond/querycache/server"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("querycached: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return err
	}

	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: cfg.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.TracingExporter != "none",
			Exporter:  cfg.TracingExporter,
			SamplePct: cfg.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.MetricsExporter != "none",
			Exporter: cfg.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Printf("querycached: telemetry shutdown: %v", err)
		}
	}()
	logger := obs.Logger()

	codec, releaseCodec, err := newCodec(cfg.Codec)
	if err != nil {
		return err
	}
	defer releaseCodec()

	store, err := cache.New[any](cache.Config{
		Name:             "query",
		MaxMemoryBytes:   cfg.MaxMemoryBytes,
		Policy:           cache.Policy{DefaultTTL: cfg.DefaultTTL, MaxTTL: cfg.MaxTTL},
		Codec:            codec,
		PatternCacheSize: cfg.PatternCacheSize,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return err
	}
	d, err := dispatch.New(store, mw)
	if err != nil {
		return err
	}
	reg, err := d.RegisterMetrics(obs.Meter())
	if err != nil {
		return err
	}
	defer func() { _ = reg.Unregister() }()

	agg := health.NewAggregator()
	agg.Register(health.NewBudgetChecker(store, health.BudgetCheckerConfig{}))

	srvCfg := server.Config{
		Addr:            cfg.HTTPAddr,
		RequestTimeout:  cfg.RequestTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		AllowedOrigins:  cfg.AllowedOrigins,
	}
	router, err := server.NewRouter(d, agg, logger, srvCfg)
	if err != nil {
		return err
	}

	logger.Info(ctx, "querycached starting",
		observe.Field{Key: "version", Value: version},
		observe.Field{Key: "addr", Value: cfg.HTTPAddr},
		observe.Field{Key: "max_memory_bytes", Value: cfg.MaxMemoryBytes},
		observe.Field{Key: "codec", Value: cfg.Codec},
	)
	return server.New(router, logger, srvCfg).Run(ctx)
}
