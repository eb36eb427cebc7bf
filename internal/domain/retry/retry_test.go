package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func noSleep(calls *int) Sleeper {
	return func(_ context.Context, _ time.Duration) error {
		*calls++
		return nil
	}
}

func TestNewPolicyRejectsBadBudget(t *testing.T) {
	t.Parallel()

	_, err := NewPolicy(0, time.Second)
	require.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = NewPolicy(-1, time.Second)
	require.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	sleeps := 0
	p, err := NewPolicy(3, time.Second, WithSleeper(noSleep(&sleeps)))
	require.NoError(t, err)

	calls := 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, sleeps, "no waits when the first attempt succeeds")
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	sleeps := 0
	p, err := NewPolicy(3, time.Second, WithSleeper(noSleep(&sleeps)))
	require.NoError(t, err)

	calls := 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, sleeps, "one wait between each pair of attempts")
}

func TestDoExhaustsBudget(t *testing.T) {
	t.Parallel()

	sleeps := 0
	p, err := NewPolicy(3, time.Second, WithSleeper(noSleep(&sleeps)))
	require.NoError(t, err)

	calls := 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	}, nil)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, sleeps, "no wait after the final attempt")
}

func TestDoPermanentShortCircuits(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(3, time.Second, WithSleeper(noSleep(new(int))))
	require.NoError(t, err)

	calls := 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBoom)
	}, nil)
	require.ErrorIs(t, err, errBoom)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDoAttemptCallbackSeesAttemptNumbers(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(3, 0)
	require.NoError(t, err)

	var seen []int
	err = p.Do(context.Background(), func(context.Context) error {
		return errBoom
	}, func(n int) error {
		seen = append(seen, n)
		return nil
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDoAttemptCallbackErrorAborts(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(3, 0)
	require.NoError(t, err)

	bookkeeping := errors.New("store down")
	calls := 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	}, func(n int) error {
		if n == 2 {
			return bookkeeping
		}
		return nil
	})
	require.ErrorIs(t, err, bookkeeping)
	assert.Equal(t, 1, calls, "operation must not run after a bookkeeping failure")
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	p, err := NewPolicy(3, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errBoom
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(errBoom))
}
