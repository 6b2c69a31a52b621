package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection refused")

func fastConfig(maxAttempts int) Config {
	return Config{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestPollReturnsWhenDone(t *testing.T) {
	calls := 0
	got, err := Poll(context.Background(), fastConfig(5), func(ctx context.Context, attempt int) (string, bool, error) {
		calls++
		return "completed", attempt == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "completed", got)
	assert.Equal(t, 3, calls)
}

func TestPollPermanentStopsImmediately(t *testing.T) {
	boom := errors.New("runner failed")
	calls := 0
	_, err := Poll(context.Background(), fastConfig(5), func(ctx context.Context, attempt int) (int, bool, error) {
		calls++
		return 0, false, Permanent(boom)
	})

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestPollTransientErrorsRetryAndReport(t *testing.T) {
	var reported []int
	cfg := fastConfig(4)
	cfg.OnRetry = func(attempt int, err error) {
		assert.ErrorIs(t, err, errTransient)
		reported = append(reported, attempt)
	}

	got, err := Poll(context.Background(), cfg, func(ctx context.Context, attempt int) (int, bool, error) {
		if attempt < 3 {
			return 0, false, errTransient
		}
		return 42, true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, []int{1, 2}, reported)
}

func TestPollExhausted(t *testing.T) {
	calls := 0
	_, err := Poll(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) (int, bool, error) {
		calls++
		return 0, false, nil
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, calls)
}

func TestPollExhaustedWrapsLastError(t *testing.T) {
	_, err := Poll(context.Background(), fastConfig(2), func(ctx context.Context, attempt int) (int, bool, error) {
		return 0, false, errTransient
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errTransient)
}

func TestPollContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{Interval: time.Hour, MaxAttempts: 10}

	_, err := Poll(ctx, cfg, func(ctx context.Context, attempt int) (int, bool, error) {
		cancel()
		return 0, false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollWaitFirst(t *testing.T) {
	cfg := Config{Interval: 20 * time.Millisecond, MaxAttempts: 1, WaitFirst: true}
	start := time.Now()

	_, err := Poll(context.Background(), cfg, func(ctx context.Context, attempt int) (int, bool, error) {
		return 1, true, nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNextBacksOffToCap(t *testing.T) {
	cfg := Config{Multiplier: 2, MaxInterval: 300 * time.Millisecond}

	assert.Equal(t, 200*time.Millisecond, next(100*time.Millisecond, cfg))
	assert.Equal(t, 300*time.Millisecond, next(200*time.Millisecond, cfg))
	assert.Equal(t, 100*time.Millisecond, next(100*time.Millisecond, Config{}))
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
