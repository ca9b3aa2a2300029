package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned without running the operation while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

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
		return "half_open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening (default 5)
	RecoveryTimeout  time.Duration // time since last failure before a trial call (default 60s)

	// OnStateChange is called after the lock is released.
	OnStateChange func(name string, from, to State)
}

type transition struct {
	from, to State
}

// CircuitBreaker is safe for concurrent use. In half-open exactly one trial
// call is admitted; everything else fails fast until it reports back.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	onStateChange    func(name string, from, to State)
	now              func() time.Time

	state         State
	generation    uint64 // bumped on every state change
	failureCount  int
	lastFailure   time.Time
	trialInFlight bool
}

// ticket records what a call was admitted under so its result can be judged
// against the state it ran in.
type ticket struct {
	trial      bool
	generation uint64
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		onStateChange:    cfg.OnStateChange,
		now:              time.Now,
		state:            StateClosed,
	}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// State reports the current state, promoting open to half-open once the
// recovery timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	t, changed := cb.promoteLocked()
	s := cb.state
	cb.mu.Unlock()
	if changed {
		cb.notify(t)
	}
	return s
}

func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Call runs fn under breaker protection.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Execute runs op under cb. A nil breaker runs op directly.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, op func(ctx context.Context) (T, error)) (T, error) {
	if cb == nil {
		return safeCall(ctx, op)
	}
	tk, err := cb.acquire()
	if err != nil {
		var zero T
		return zero, err
	}
	val, err := safeCall(ctx, op)
	cb.release(tk, err)
	return val, err
}

func (cb *CircuitBreaker) acquire() (tk ticket, err error) {
	cb.mu.Lock()
	t, changed := cb.promoteLocked()
	switch cb.state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.trialInFlight {
			err = ErrCircuitOpen
		} else {
			cb.trialInFlight = true
			tk.trial = true
		}
	}
	tk.generation = cb.generation
	cb.mu.Unlock()
	if changed {
		cb.notify(t)
	}
	return tk, err
}

func (cb *CircuitBreaker) release(tk ticket, err error) {
	var (
		t       transition
		changed bool
	)
	cb.mu.Lock()
	if tk.trial && tk.generation == cb.generation {
		cb.trialInFlight = false
	}
	switch {
	case tk.generation != cb.generation:
		// Admitted under an earlier state; only calls from the current one decide.
	case err == nil:
		cb.failureCount = 0
		if cb.state != StateClosed {
			t, changed = cb.setStateLocked(StateClosed)
		}
	case errors.Is(err, context.Canceled):
		// The caller walked away; this says nothing about the dependency.
	default:
		cb.failureCount++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen {
			t, changed = cb.setStateLocked(StateOpen)
		} else if cb.state == StateClosed && cb.failureCount >= cb.failureThreshold {
			t, changed = cb.setStateLocked(StateOpen)
		}
	}
	cb.mu.Unlock()
	if changed {
		cb.notify(t)
	}
}

func (cb *CircuitBreaker) promoteLocked() (transition, bool) {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.recoveryTimeout {
		cb.trialInFlight = false
		return cb.setStateLocked(StateHalfOpen)
	}
	return transition{}, false
}

func (cb *CircuitBreaker) setStateLocked(s State) (transition, bool) {
	if cb.state == s {
		return transition{}, false
	}
	t := transition{from: cb.state, to: s}
	cb.state = s
	cb.generation++
	return t, true
}

func (cb *CircuitBreaker) notify(t transition) {
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, t.from, t.to)
	}
}
