package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string

	// RequestTimeout bounds each request.
	// Default: 10s
	RequestTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps POST bodies.
	// Default: 8 MiB
	MaxBodyBytes int64

	// AllowedOrigins for CORS.
	// Default: http://* and https://*
	AllowedOrigins []string

	// Registerer receives HTTP metrics; Gatherer is served on /metrics.
	// Default: the Prometheus default registry
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 8 << 20
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"https://*", "http://*"}
	}
	if c.Registerer == nil {
		c.Registerer = prometheus.DefaultRegisterer
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
}
