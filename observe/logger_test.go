package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, line)
	}
	return entry
}

func TestLogger_IncludesOperationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	opLogger := logger.WithOperation(Operation{Store: "reports", Action: "get", Key: "q:1"})
	opLogger.Info(context.Background(), "test message")

	entry := decodeLine(t, buf.String())

	if v := entry["cache.store"]; v != "reports" {
		t.Errorf("cache.store = %v, want reports", v)
	}
	if v := entry["cache.action"]; v != "get" {
		t.Errorf("cache.action = %v, want get", v)
	}
	if v := entry["cache.key"]; v != "q:1" {
		t.Errorf("cache.key = %v, want q:1", v)
	}
	if v := entry["msg"]; v != "test message" {
		t.Errorf("msg = %v, want 'test message'", v)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_DefaultStoreName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.WithOperation(Operation{Action: "stats"}).Info(context.Background(), "x")

	entry := decodeLine(t, buf.String())
	if v := entry["cache.store"]; v != "default" {
		t.Errorf("cache.store = %v, want default", v)
	}
	if _, ok := entry["cache.key"]; ok {
		t.Error("cache.key should be omitted when empty")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
	}{
		{"debug", []string{"debug", "info", "warn", "error"}},
		{"info", []string{"info", "warn", "error"}},
		{"warn", []string{"warn", "error"}},
		{"error", []string{"error"}},
		{"bogus", []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tt.level, &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d: %q", len(lines), len(tt.want), buf.String())
			}
			for i, line := range lines {
				if got := decodeLine(t, line)["level"]; got != tt.want[i] {
					t.Errorf("line %d level = %v, want %s", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestLogger_RedactsValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "stored",
		Field{Key: "value", Value: map[string]any{"ssn": "123-45-6789"}},
		Field{Key: "token", Value: "abc"},
		Field{Key: "size_bytes", Value: 42},
	)

	out := buf.String()
	if strings.Contains(out, "123-45-6789") || strings.Contains(out, "abc") {
		t.Fatalf("sensitive field leaked: %s", out)
	}

	entry := decodeLine(t, out)
	if entry["value"] != "[REDACTED]" {
		t.Errorf("value = %v, want [REDACTED]", entry["value"])
	}
	if entry["size_bytes"] != float64(42) {
		t.Errorf("size_bytes = %v, want 42", entry["size_bytes"])
	}
}

func TestLogger_WithOperationDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	_ = logger.WithOperation(Operation{Action: "set"})
	logger.Info(context.Background(), "parent")

	if _, ok := decodeLine(t, buf.String())["cache.action"]; ok {
		t.Error("parent logger should not carry operation fields")
	}
}

func TestParseLogLevel_RoundTrip(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q", s, got)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	ctx := context.Background()
	l.Info(ctx, "x")
	l.Warn(ctx, "x")
	l.Error(ctx, "x")
	l.Debug(ctx, "x")
	if l.WithOperation(Operation{Action: "get"}) == nil {
		t.Fatal("WithOperation should return non-nil logger")
	}
}
