package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, recovery time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(BreakerConfig{
		Name:             "test",
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
	})
	cb.now = clock.Now
	return cb, clock
}

func failN(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = cb.Call(context.Background(), func(ctx context.Context) error {
			return errTransient
		})
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 5, cb.failureThreshold)
	assert.Equal(t, 60*time.Second, cb.recoveryTimeout)
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(5, time.Minute)

	failN(t, cb, 4)
	assert.Equal(t, StateClosed, cb.State())

	failN(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	failN(t, cb, 2)
	require.NoError(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, 0, cb.FailureCount())

	failN(t, cb, 2)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpenFailsFast(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Minute)
	failN(t, cb, 2)

	clock.Advance(30 * time.Second)
	invoked := false
	_, err := Execute(context.Background(), cb, func(ctx context.Context) (int, error) {
		invoked = true
		return 1, nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Minute)
	failN(t, cb, 2)

	clock.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	v, err := Execute(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, time.Minute)
	failN(t, cb, 2)

	clock.Advance(time.Minute)
	failN(t, cb, 1)
	assert.Equal(t, StateOpen, cb.State())

	// The open timer restarted from the failed trial.
	clock.Advance(59 * time.Second)
	assert.Equal(t, StateOpen, cb.State())
	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_SingleTrialWhileHalfOpen(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	failN(t, cb, 1)
	clock.Advance(time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	var invoked atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(context.Background(), func(ctx context.Context) error {
			invoked.Add(1)
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var rejected atomic.Int32
	var others sync.WaitGroup
	for i := 0; i < 10; i++ {
		others.Add(1)
		go func() {
			defer others.Done()
			err := cb.Call(context.Background(), func(ctx context.Context) error {
				invoked.Add(1)
				return nil
			})
			if errors.Is(err, ErrCircuitOpen) {
				rejected.Add(1)
			}
		}()
	}
	others.Wait()
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), invoked.Load())
	assert.Equal(t, int32(10), rejected.Load())
	assert.Equal(t, StateClosed, cb.State())
}

// startHeld admits a call through cb and holds it until the returned func is
// invoked, which lets it finish with result and waits for the breaker to see it.
func startHeld(t *testing.T, cb *CircuitBreaker, result error) func() {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cb.Call(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return result
		})
	}()
	<-started
	return func() {
		close(release)
		<-done
	}
}

func TestCircuitBreaker_LateResultsDoNotOverrideTrial(t *testing.T) {
	t.Run("late success while trial in flight", func(t *testing.T) {
		cb, clock := newTestBreaker(1, time.Minute)
		finishLate := startHeld(t, cb, nil)

		failN(t, cb, 1)
		clock.Advance(time.Minute)
		finishTrial := startHeld(t, cb, errors.New("still down"))

		finishLate()
		assert.Equal(t, StateHalfOpen, cb.State())
		assert.ErrorIs(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }), ErrCircuitOpen)

		finishTrial()
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("late failure while trial in flight", func(t *testing.T) {
		cb, clock := newTestBreaker(1, time.Minute)
		finishLate := startHeld(t, cb, errors.New("slow timeout"))

		failN(t, cb, 1)
		clock.Advance(time.Minute)
		finishTrial := startHeld(t, cb, nil)

		finishLate()
		assert.Equal(t, StateHalfOpen, cb.State())

		finishTrial()
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.FailureCount())
	})

	t.Run("late failure after recovery", func(t *testing.T) {
		cb, clock := newTestBreaker(1, time.Minute)
		finishLate := startHeld(t, cb, errors.New("slow timeout"))

		failN(t, cb, 1)
		clock.Advance(time.Minute)
		require.NoError(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }))

		finishLate()
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, 0, cb.FailureCount())
	})
}

func TestCircuitBreaker_CancelledCallsDoNotCount(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	err := cb.Call(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_StateChangeHook(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	cb, clock := newTestBreaker(1, time.Second)
	cb.onStateChange = func(name string, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, from.String()+"->"+to.String())
	}

	failN(t, cb, 1)
	clock.Advance(time.Second)
	require.NoError(t, cb.Call(context.Background(), func(ctx context.Context) error { return nil }))

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, seen)
}

func TestExecute_NilBreaker(t *testing.T) {
	v, err := Execute(context.Background(), nil, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
