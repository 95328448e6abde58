package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test, restoring
// it on cleanup. Stand-in for testing.T.Chdir, which needs Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int64(100<<20), cfg.MaxMemoryBytes)
	assert.Equal(t, 5*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, 24*time.Hour, cfg.MaxTTL)
	assert.Equal(t, "none", cfg.Codec)
}

func TestLoadConfig_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("QUERYCACHE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("QUERYCACHE_MAX_MEMORY_BYTES", "4096")
	t.Setenv("QUERYCACHE_DEFAULT_TTL", "30s")
	t.Setenv("QUERYCACHE_CODEC", "zstd")
	t.Setenv("QUERYCACHE_HTTP_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, int64(4096), cfg.MaxMemoryBytes)
	assert.Equal(t, 30*time.Second, cfg.DefaultTTL)
	assert.Equal(t, "zstd", cfg.Codec)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown codec", "QUERYCACHE_CODEC", "lz4"},
		{"zero budget", "QUERYCACHE_MAX_MEMORY_BYTES", "0"},
		{"max below default", "QUERYCACHE_MAX_TTL", "1m"},
		{"sample out of range", "QUERYCACHE_TRACING_SAMPLE_PCT", "1.5"},
		{"unparsable duration", "QUERYCACHE_DEFAULT_TTL", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestNewCodec(t *testing.T) {
	for _, name := range []string{"none", "brotli", "zstd"} {
		t.Run(name, func(t *testing.T) {
			codec, release, err := newCodec(name)
			require.NoError(t, err)
			defer release()

			if name == "none" {
				assert.Nil(t, codec)
				return
			}
			require.NotNil(t, codec)
			assert.Equal(t, name, codec.Name())
		})
	}
}
