package loader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errOrigin = errors.New("origin unavailable")

// newTestBreaker returns a breaker on a manual clock and a func that
// advances it.
func newTestBreaker(cfg CircuitConfig) (*circuitBreaker, func(time.Duration)) {
	cb := newCircuitBreaker(cfg)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	cb.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	return cb, func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
}

func fail(context.Context) error    { return errOrigin }
func succeed(context.Context) error { return nil }

func TestCircuitConfig_Defaults(t *testing.T) {
	cb := newCircuitBreaker(CircuitConfig{})

	if cb.cfg.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.cfg.MaxFailures)
	}
	if cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.cfg.ResetTimeout)
	}
	if cb.cfg.HalfOpenMaxRequests != 1 || cb.cfg.SuccessThreshold != 1 {
		t.Errorf("HalfOpenMaxRequests = %d, SuccessThreshold = %d, want 1, 1",
			cb.cfg.HalfOpenMaxRequests, cb.cfg.SuccessThreshold)
	}
	if cb.currentState() != CircuitClosed {
		t.Errorf("initial state = %v, want closed", cb.currentState())
	}
}

func TestCircuit_OpensAfterMaxFailures(t *testing.T) {
	cb, advance := newTestBreaker(CircuitConfig{MaxFailures: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.execute(ctx, fail); !errors.Is(err, errOrigin) {
			t.Fatalf("execute() error = %v, want errOrigin", err)
		}
		if cb.currentState() != CircuitClosed {
			t.Fatalf("after %d failures state = %v, want closed", i+1, cb.currentState())
		}
	}

	_ = cb.execute(ctx, fail)
	if cb.currentState() != CircuitOpen {
		t.Fatalf("after 3 failures state = %v, want open", cb.currentState())
	}

	advance(20 * time.Second)
	err := cb.execute(ctx, func(context.Context) error {
		t.Error("op called while circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("execute() error = %v, want ErrCircuitOpen", err)
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("error %T is not *CircuitOpenError", err)
	}
	if openErr.RetryAfter != 40*time.Second {
		t.Errorf("RetryAfter = %v, want 40s", openErr.RetryAfter)
	}
	if !strings.Contains(err.Error(), "retry after 40s") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCircuit_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(CircuitConfig{MaxFailures: 2})
	ctx := context.Background()

	_ = cb.execute(ctx, fail)
	_ = cb.execute(ctx, succeed)
	_ = cb.execute(ctx, fail)

	if cb.currentState() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.currentState())
	}
}

func TestCircuit_HalfOpenCloses(t *testing.T) {
	cb, advance := newTestBreaker(CircuitConfig{MaxFailures: 1, ResetTimeout: time.Second, SuccessThreshold: 2})
	ctx := context.Background()

	_ = cb.execute(ctx, fail)
	advance(time.Second)

	if cb.currentState() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.currentState())
	}

	if err := cb.execute(ctx, succeed); err != nil {
		t.Fatalf("first trial error = %v", err)
	}
	if cb.currentState() != CircuitHalfOpen {
		t.Fatalf("after one trial state = %v, want half-open", cb.currentState())
	}

	if err := cb.execute(ctx, succeed); err != nil {
		t.Fatalf("second trial error = %v", err)
	}
	if cb.currentState() != CircuitClosed {
		t.Errorf("after two trials state = %v, want closed", cb.currentState())
	}
}

func TestCircuit_HalfOpenFailureReopens(t *testing.T) {
	cb, advance := newTestBreaker(CircuitConfig{MaxFailures: 1, ResetTimeout: time.Second})
	ctx := context.Background()

	_ = cb.execute(ctx, fail)
	advance(time.Second)

	if err := cb.execute(ctx, fail); !errors.Is(err, errOrigin) {
		t.Fatalf("trial error = %v, want errOrigin", err)
	}
	if cb.currentState() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.currentState())
	}

	// The reset timeout restarts from the failed trial.
	advance(500 * time.Millisecond)
	if err := cb.execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuit_HalfOpenLimitsTrials(t *testing.T) {
	cb, advance := newTestBreaker(CircuitConfig{MaxFailures: 1, ResetTimeout: time.Second})
	ctx := context.Background()

	_ = cb.execute(ctx, fail)
	advance(time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := cb.execute(ctx, succeed)
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) || openErr.State != CircuitHalfOpen {
		t.Errorf("second trial error = %v, want half-open rejection", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first trial error = %v", err)
	}
	if cb.currentState() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.currentState())
	}
}

func TestCircuit_IgnoredErrors(t *testing.T) {
	cb, _ := newTestBreaker(CircuitConfig{MaxFailures: 1})
	ctx := context.Background()

	_ = cb.execute(ctx, func(context.Context) error { return context.Canceled })
	_ = cb.execute(ctx, func(context.Context) error { return ErrRateLimited })

	if cb.currentState() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.currentState())
	}
}

func TestCircuit_OnStateChange(t *testing.T) {
	var got []string
	cb, advance := newTestBreaker(CircuitConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		OnStateChange: func(from, to CircuitState) {
			got = append(got, from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	_ = cb.execute(ctx, fail)
	advance(time.Second)
	_ = cb.execute(ctx, succeed)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("transitions = %v, want %v", got, want)
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
