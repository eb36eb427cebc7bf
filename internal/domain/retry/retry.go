// Package retry implements the shared attempt-budget policy used around the
// two external, failure-prone pipeline steps: document conversion and mail
// transmission.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidMaxAttempts indicates the configured attempt budget is not positive.
var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

// Sleeper suspends the calling goroutine for d or until ctx is cancelled.
// Injected in tests to avoid real waits.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// permanentError marks a failure that must never be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the policy propagates it immediately without
// consuming the remaining attempt budget. Use for programming and contract
// errors that retrying cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Policy retries an operation up to MaxAttempts times total, waiting Delay
// between attempts. There is no wait after the final attempt. The policy is
// immutable, shared configuration; per-task attempt counts live on the task.
type Policy struct {
	maxAttempts int
	delay       time.Duration
	sleep       Sleeper
}

// Option configures a Policy.
type Option func(*Policy)

// WithSleeper overrides how the policy waits between attempts.
func WithSleeper(s Sleeper) Option {
	return func(p *Policy) {
		if s != nil {
			p.sleep = s
		}
	}
}

// NewPolicy constructs a Policy with the given attempt budget and fixed
// inter-attempt delay. A non-positive delay disables waiting.
func NewPolicy(maxAttempts int, delay time.Duration, opts ...Option) (*Policy, error) {
	if maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	p := &Policy{
		maxAttempts: maxAttempts,
		delay:       delay,
		sleep:       defaultSleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// MaxAttempts returns the configured attempt budget.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Delay returns the configured inter-attempt delay.
func (p *Policy) Delay() time.Duration {
	return p.delay
}

// Do runs op until it succeeds, returns a permanent error, the attempt budget
// is exhausted, or ctx is cancelled. The attempt callback, when non-nil, is
// invoked before each attempt with the 1-based attempt number; failures there
// abort immediately (they are bookkeeping errors, not operation failures).
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error, attempt func(n int) error) error {
	var lastErr error
	for n := 1; n <= p.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt != nil {
			if err := attempt(n); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || errors.Is(err, context.Canceled) {
			return err
		}
		lastErr = err

		// No delay after the final attempt.
		if n < p.maxAttempts && p.delay > 0 {
			if serr := p.sleep(ctx, p.delay); serr != nil {
				return serr
			}
		}
	}
	return lastErr
}
