// Package resilience provides retry-with-backoff and circuit breaking for
// calls to external services. Nothing here knows what is being called.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts     = 3
	defaultBaseDelay       = 1 * time.Second
	defaultMaxDelay        = 30 * time.Second
	defaultExponentialBase = 2.0
	jitterFraction         = 0.25
)

// RetryAfterHinter is implemented by errors that carry a server-suggested wait.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

type RetryOptions struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool

	// RetryIf rejects errors that should end the loop immediately. Nil retries everything.
	RetryIf func(err error) bool
	// OnRetry runs before each sleep with the 1-based number of the failed attempt.
	OnRetry func(attempt int, err error)

	random func() float64
}

// DefaultRetryOptions returns 3 attempts, 1s base, 30s cap, base 2, jitter on.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:     defaultMaxAttempts,
		BaseDelay:       defaultBaseDelay,
		MaxDelay:        defaultMaxDelay,
		ExponentialBase: defaultExponentialBase,
		Jitter:          true,
	}
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = 0
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.ExponentialBase < 1 {
		o.ExponentialBase = defaultExponentialBase
	}
	if o.random == nil {
		o.random = rand.Float64
	}
	return o
}

// RetryResult reports the outcome of Retry. Err is the last error seen.
type RetryResult[T any] struct {
	Value    T
	Err      error
	Attempts int
	Success  bool
}

// Retry runs op until it succeeds, the predicate rejects an error, attempts
// run out or ctx is done. It never panics; a panicking op counts as a failure.
func Retry[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts RetryOptions) RetryResult[T] {
	opts = opts.withDefaults()
	var res RetryResult[T]

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if res.Err == nil {
				res.Err = err
			}
			return res
		}

		res.Attempts = attempt
		val, err := safeCall(ctx, op)
		if err == nil {
			res.Value = val
			res.Err = nil
			res.Success = true
			return res
		}
		res.Err = err

		if attempt == opts.MaxAttempts {
			break
		}
		if opts.RetryIf != nil && !opts.RetryIf(err) {
			break
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err)
		}

		wait := opts.delay(attempt, err)
		if !sleep(ctx, wait) {
			res.Err = errors.Join(ctx.Err(), err)
			return res
		}
	}
	return res
}

// delay computes the wait after the given 1-based failed attempt.
func (o RetryOptions) delay(attempt int, err error) time.Duration {
	d := float64(o.BaseDelay) * math.Pow(o.ExponentialBase, float64(attempt-1))
	if d > float64(o.MaxDelay) {
		d = float64(o.MaxDelay)
	}
	if o.Jitter {
		d += d * jitterFraction * (2*o.random() - 1)
	}
	if d < 0 {
		d = 0
	}
	wait := time.Duration(d)

	var hinter RetryAfterHinter
	if errors.As(err, &hinter) {
		if hint := hinter.RetryAfterHint(); hint > wait {
			wait = min(hint, o.MaxDelay)
		}
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func safeCall[T any](ctx context.Context, op func(ctx context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx)
}
