// Package resilience provides the circuit breaker used by the API client
// to stop hammering an unreachable server.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sispromo/sispromo/internal/config"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker tracks consecutive failures and opens once maxFailures is
// reached. After timeout a single probe call is let through (half-open);
// its outcome closes or re-opens the circuit.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	probing     bool

	// IsFailure decides which errors count against the circuit. Nil counts
	// every non-nil error. Errors it rejects are returned but reset nothing.
	IsFailure func(error) bool

	now func() time.Time
}

// NewBreaker creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for the given timeout before transitioning to half-open.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// NewBreakerFromConfig creates a Breaker from configuration.
func NewBreakerFromConfig(cfg config.Breaker) *Breaker {
	return NewBreaker(cfg.MaxFailures, cfg.Timeout)
}

// Execute runs fn if the circuit allows it.
// Returns ErrCircuitOpen if the circuit is open.
func (b *Breaker) Execute(fn func() error) error {
	return b.Do(context.Background(), func(context.Context) error { return fn() })
}

// Do runs fn under the breaker. A context cancellation is not counted as a
// failure of the remote side.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, ok := b.allow()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	switch {
	case err == nil:
		b.onSuccess(ctx)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// caller gave up
	case b.IsFailure == nil || b.IsFailure(err):
		b.onFailure(ctx)
	}
	return err
}

// State returns the current position, moving open to half-open once the
// timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() (probe, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false, false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true, true
	case StateHalfOpen:
		if b.probing {
			return false, false
		}
		b.probing = true
		return true, true
	}
	return false, false
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(ctx context.Context) {
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		if b.state != StateOpen {
			slog.WarnContext(ctx, "circuit breaker opened", "failures", b.failures)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(ctx context.Context) {
	if b.state != StateClosed {
		slog.InfoContext(ctx, "circuit breaker closed")
	}
	b.failures = 0
	b.state = StateClosed
}
