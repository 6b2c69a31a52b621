// Package retry provides a transport independent polling loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when MaxAttempts polls ran without reaching a
// terminal state.
var ErrExhausted = errors.New("polling attempts exhausted")

// Config controls the cadence of Poll.
type Config struct {
	// Interval is the delay between attempts.
	Interval time.Duration
	// MaxInterval caps the delay when Multiplier grows it. Zero means no cap.
	MaxInterval time.Duration
	// Multiplier grows the delay after every attempt when greater than 1.
	Multiplier float64
	// MaxAttempts bounds the number of calls. Zero or less polls until ctx is done.
	MaxAttempts int
	// WaitFirst sleeps one Interval before the first attempt.
	WaitFirst bool
	// OnRetry is told about transient errors.
	OnRetry func(attempt int, err error)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as terminal: Poll stops and returns err unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Poll calls fn until it reports done, returns a Permanent error, the
// attempts run out or ctx is done. Attempts are numbered from 1.
func Poll[T any](ctx context.Context, cfg Config, fn func(ctx context.Context, attempt int) (T, bool, error)) (T, error) {
	var zero T
	var lastErr error
	delay := cfg.Interval

	if cfg.WaitFirst {
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	for attempt := 1; cfg.MaxAttempts <= 0 || attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, done, err := fn(ctx, attempt)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return zero, perm.err
			}
			lastErr = err
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err)
			}
		} else if done {
			return value, nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
		delay = next(delay, cfg)
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
	}
	return zero, fmt.Errorf("%w after %d attempts", ErrExhausted, cfg.MaxAttempts)
}

func next(delay time.Duration, cfg Config) time.Duration {
	if cfg.Multiplier <= 1 {
		return delay
	}
	delay = time.Duration(float64(delay) * cfg.Multiplier)
	if cfg.MaxInterval > 0 && delay > cfg.MaxInterval {
		delay = cfg.MaxInterval
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
