package main

import (
	"context"
	"fmt"
	"log"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jonwraymond/querycache/cache"
)

// envPrefix namespaces every variable, e.g. QUERYCACHE_HTTP_ADDR.
const envPrefix = "QUERYCACHE"

// Config is the daemon configuration, read from the environment and an
// optional .env file.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"querycache"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"HTTP_ALLOWED_ORIGINS"`

	MaxMemoryBytes   int64         `envconfig:"MAX_MEMORY_BYTES" default:"104857600"`
	DefaultTTL       time.Duration `envconfig:"DEFAULT_TTL" default:"5m"`
	MaxTTL           time.Duration `envconfig:"MAX_TTL" default:"24h"`
	Codec            string        `envconfig:"CODEC" default:"none"`
	PatternCacheSize int64         `envconfig:"PATTERN_CACHE_SIZE" default:"256"`

	LogLevel        string  `envconfig:"LOG_LEVEL" default:"info"`
	TracingExporter string  `envconfig:"TRACING_EXPORTER" default:"none"`
	SamplePct       float64 `envconfig:"TRACING_SAMPLE_PCT" default:"0.1"`
	MetricsExporter string  `envconfig:"METRICS_EXPORTER" default:"prometheus"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil {
		log.Printf("querycached: no .env file loaded: %v", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWithContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ValidateWithContext checks ranges and enumerations after defaults apply.
func (c *Config) ValidateWithContext(ctx context.Context) error {
	return validation.ValidateStructWithContext(ctx, c,
		validation.Field(&c.ServiceName, validation.Required),
		validation.Field(&c.HTTPAddr, validation.Required),
		validation.Field(&c.MaxMemoryBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.DefaultTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxTTL, validation.Required, validation.Min(c.DefaultTTL)),
		validation.Field(&c.Codec, validation.In("none", "brotli", "zstd")),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.TracingExporter, validation.In("otlp", "jaeger", "stdout", "none")),
		validation.Field(&c.SamplePct, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.MetricsExporter, validation.In("otlp", "prometheus", "stdout", "none")),
	)
}

// newCodec returns the configured codec and a release func. "none" yields
// a nil codec, which selects simulated compression.
func newCodec(name string) (cache.Codec, func(), error) {
	switch name {
	case "brotli":
		return cache.NewBrotliCodec(), func() {}, nil
	case "zstd":
		z, err := cache.NewZstdCodec()
		if err != nil {
			return nil, nil, err
		}
		return z, z.Close, nil
	default:
		return nil, func() {}, nil
	}
}
