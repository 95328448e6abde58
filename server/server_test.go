package server

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/dispatch"
	"github.com/jonwraymond/querycache/health"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Warning string          `json:"warning"`
	Payload json.RawMessage `json:"payload"`
}

type fixture struct {
	store  *cache.Store[any]
	router http.Handler
}

func newFixture(t *testing.T, maxBytes int64) *fixture {
	t.Helper()

	store, err := cache.New[any](cache.Config{Name: "http", MaxMemoryBytes: maxBytes})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	d, err := dispatch.New(store, nil)
	require.NoError(t, err)

	agg := health.NewAggregator()
	agg.Register(health.NewBudgetChecker(store, health.BudgetCheckerConfig{}))

	reg := prometheus.NewRegistry()
	router, err := NewRouter(d, agg, nil, Config{Registerer: reg, Gatherer: reg})
	require.NoError(t, err)

	return &fixture{store: store, router: router}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestRouter_SetAndGet(t *testing.T) {
	f := newFixture(t, 1<<20)

	rec, env := f.do(t, http.MethodPost, "/v1/cache", dispatch.Request{
		Action: dispatch.ActionSet, Key: "user:1", Value: map[string]any{"name": "ada"}, TTLSeconds: 60,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var entry cache.Entry
	require.NoError(t, json.Unmarshal(env.Payload, &entry))
	assert.Equal(t, "user:1", entry.Key)
	assert.Equal(t, float64(60), entry.TTLSeconds)

	rec, env = f.do(t, http.MethodGet, "/v1/cache/entries/"+url.PathEscape("user:1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"cached":true,"value":{"name":"ada"}}`, string(env.Payload))
}

func TestRouter_EntryKeysDecodedOnce(t *testing.T) {
	f := newFixture(t, 1<<20)

	keys := []string{"a%41", "100%", "user:1", "a/b", "q 1", "50%2F50"}
	for _, key := range keys {
		rec, env := f.do(t, http.MethodPost, "/v1/cache", dispatch.Request{Action: dispatch.ActionSet, Key: key, Value: key})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.True(t, env.Success, key)
	}

	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			path := "/v1/cache/entries/" + url.PathEscape(key)

			rec, env := f.do(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.True(t, env.Success)
			assert.JSONEq(t, `{"cached":true,"value":`+strconv.Quote(key)+`}`, string(env.Payload))

			rec, env = f.do(t, http.MethodDelete, path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, env.Success)
			assert.JSONEq(t, `{"removed":true}`, string(env.Payload))
		})
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestRouter_SoftMissIsOK(t *testing.T) {
	f := newFixture(t, 1<<20)

	rec, env := f.do(t, http.MethodPost, "/v1/cache", dispatch.Request{Action: dispatch.ActionGet, Key: "nope"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Success)
	assert.Empty(t, env.Error)
	assert.JSONEq(t, `{"cached":false}`, string(env.Payload))

	rec, env = f.do(t, http.MethodDelete, "/v1/cache/entries/nope", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.Success)
	assert.JSONEq(t, `{"removed":false}`, string(env.Payload))
}

func TestRouter_Rejections(t *testing.T) {
	f := newFixture(t, 1<<20)

	tests := []struct {
		name      string
		body      any
		wantError string
	}{
		{"malformed json", `{"action":`, "server: malformed request body"},
		{"unknown action", dispatch.Request{Action: "upsert"}, "dispatch: action is invalid"},
		{"missing key", dispatch.Request{Action: dispatch.ActionSet}, "cache: key is invalid"},
		{"bad pattern", dispatch.Request{Action: dispatch.ActionInvalidate, Pattern: "(("}, "cache: pattern does not compile"},
		{"bad level", dispatch.Request{Action: dispatch.ActionCompress, CompressionLevel: 11}, "cache: compression level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodPost, "/v1/cache", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.Contains(t, env.Error, tt.wantError)
		})
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestRouter_StatsAndEntries(t *testing.T) {
	f := newFixture(t, 1<<20)

	for _, k := range []string{"q:2", "q:1"} {
		f.do(t, http.MethodPost, "/v1/cache", dispatch.Request{Action: dispatch.ActionSet, Key: k, Value: "row"})
	}
	f.do(t, http.MethodGet, "/v1/cache/entries/q:1", nil)

	rec, env := f.do(t, http.MethodGet, "/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st cache.Stats
	require.NoError(t, json.Unmarshal(env.Payload, &st))
	assert.Equal(t, 2, st.TotalEntries)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, float64(100), st.HitRate)

	_, env = f.do(t, http.MethodGet, "/v1/cache/entries", nil)
	var entries []cache.Entry
	require.NoError(t, json.Unmarshal(env.Payload, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "q:1", entries[0].Key)
	assert.Equal(t, uint64(1), entries[0].HitCount)
}

func TestRouter_OversizedWarning(t *testing.T) {
	f := newFixture(t, 64)

	rec, env := f.do(t, http.MethodPost, "/v1/cache", dispatch.Request{
		Action: dispatch.ActionSet, Key: "big", Value: strings.Repeat("x", 200),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, cache.ErrOversizedEntry.Error(), env.Warning)

	rec, _ = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DEGRADED", rec.Body.String())
}

func TestRouter_ClosedStore(t *testing.T) {
	f := newFixture(t, 1<<20)
	f.store.Close()

	rec, env := f.do(t, http.MethodPost, "/v1/cache", dispatch.Request{Action: dispatch.ActionSet, Key: "k", Value: 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, cache.ErrClosed.Error(), env.Error)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newFixture(t, 1<<20)

	rec, _ := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec, _ = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache.http"`)

	f.do(t, http.MethodGet, "/v1/cache/entries/some-key", nil)

	rec, _ = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "querycache_http_requests_total")
	assert.Contains(t, body, `route="/v1/cache/entries/{key}"`)
	assert.NotContains(t, body, "some-key")
}

func TestRouter_RequestID(t *testing.T) {
	f := newFixture(t, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, err := cache.New[any](cache.Config{})
	require.NoError(t, err)
	defer store.Close()
	d, err := dispatch.New(store, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := NewRouter(d, nil, nil, Config{Registerer: reg, Gatherer: reg})
		require.NoError(t, err)
	}
}

func TestServer_RunAndShutdown(t *testing.T) {
	f := newFixture(t, 1<<20)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(f.router, nil, Config{ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
