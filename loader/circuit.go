package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState is the state of the origin circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets every origin fetch through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects origin fetches until ResetTimeout has passed.
	CircuitOpen
	// CircuitHalfOpen admits a few trial fetches to test recovery.
	CircuitHalfOpen
)

// String returns the string representation of the state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitConfig configures the breaker in front of origin fetches.
type CircuitConfig struct {
	// MaxFailures is the number of consecutive failed loads that opens the
	// circuit. A load counts once, after its retries are exhausted.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before trial loads.
	// Default: 30s
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent trial loads.
	// Default: 1
	HalfOpenMaxRequests int

	// SuccessThreshold is the number of successful trial loads that closes
	// the circuit again.
	// Default: 1
	SuccessThreshold int

	// IsFailure decides whether a load error counts against the origin.
	// Default: every error except context cancellation and ErrRateLimited.
	IsFailure func(err error) bool

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to CircuitState)
}

func (c *CircuitConfig) applyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = 1
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.IsFailure == nil {
		c.IsFailure = originFailure
	}
}

func originFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, ErrRateLimited)
}

// CircuitOpenError is returned for loads rejected by an open circuit. It
// matches ErrCircuitOpen with errors.Is.
type CircuitOpenError struct {
	State CircuitState

	// RetryAfter is the time left until the circuit admits trial loads.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s (%s, retry after %s)", ErrCircuitOpen, e.State, e.RetryAfter.Round(time.Millisecond))
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type transition struct {
	from, to CircuitState
}

type circuitBreaker struct {
	cfg CircuitConfig
	now func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
	trials    int
}

func newCircuitBreaker(cfg CircuitConfig) *circuitBreaker {
	cfg.applyDefaults()
	return &circuitBreaker{cfg: cfg, now: time.Now}
}

// execute runs op unless the circuit rejects it.
func (cb *circuitBreaker) execute(ctx context.Context, op func(context.Context) error) error {
	trial, changes, err := cb.admit()
	cb.notify(changes)
	if err != nil {
		return err
	}

	opErr := op(ctx)
	cb.notify(cb.record(trial, opErr))
	return opErr
}

func (cb *circuitBreaker) currentState() CircuitState {
	cb.mu.Lock()
	state, changes := cb.advanceLocked()
	cb.mu.Unlock()
	cb.notify(changes)
	return state
}

func (cb *circuitBreaker) admit() (trial bool, changes []transition, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, changes := cb.advanceLocked()
	switch state {
	case CircuitOpen:
		return false, changes, &CircuitOpenError{
			State:      CircuitOpen,
			RetryAfter: cb.openedAt.Add(cb.cfg.ResetTimeout).Sub(cb.now()),
		}
	case CircuitHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenMaxRequests {
			return false, changes, &CircuitOpenError{State: CircuitHalfOpen}
		}
		cb.trials++
		return true, changes, nil
	}
	return false, changes, nil
}

func (cb *circuitBreaker) record(trial bool, err error) []transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := cb.cfg.IsFailure(err)
	if trial && cb.trials > 0 {
		cb.trials--
	}

	switch cb.state {
	case CircuitClosed:
		if !failed {
			cb.failures = 0
			return nil
		}
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			return cb.setLocked(CircuitOpen)
		}

	case CircuitHalfOpen:
		if !trial {
			return nil
		}
		if failed {
			return cb.setLocked(CircuitOpen)
		}
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			return cb.setLocked(CircuitClosed)
		}
	}
	return nil
}

// advanceLocked moves an open circuit to half-open once ResetTimeout has
// passed. cb.mu must be held.
func (cb *circuitBreaker) advanceLocked() (CircuitState, []transition) {
	if cb.state == CircuitOpen && !cb.now().Before(cb.openedAt.Add(cb.cfg.ResetTimeout)) {
		return CircuitHalfOpen, cb.setLocked(CircuitHalfOpen)
	}
	return cb.state, nil
}

func (cb *circuitBreaker) setLocked(to CircuitState) []transition {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	switch to {
	case CircuitOpen:
		cb.openedAt = cb.now()
	case CircuitHalfOpen:
		cb.trials = 0
	}
	return []transition{{from: from, to: to}}
}

func (cb *circuitBreaker) notify(changes []transition) {
	if cb.cfg.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.cfg.OnStateChange(c.from, c.to)
	}
}
