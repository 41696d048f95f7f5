// Package retry runs operations under a bounded attempt policy with pluggable backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff returns the wait before the attempt after attempt (1-based).
type Backoff func(attempt int) time.Duration

// Constant waits d between every attempt.
func Constant(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// Linear waits base*attempt.
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration { return base * time.Duration(attempt) }
}

// Exponential waits base*2^(attempt-1), capped at max when max > 0.
func Exponential(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	// Retryable decides whether err is worth another attempt. Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy is three attempts with a linear 2s backoff.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: Linear(2 * time.Second)}
}

// Wait returns the backoff after attempt, zero when no backoff is set.
func (p Policy) Wait(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// permanentError stops retries regardless of Retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// ErrExhausted wraps the last error when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Do runs op until it succeeds, returns a non-retryable error, or attempts run out.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, fmt.Errorf("%w: %w", err, lastErr)
			}
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		wait := p.Wait(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := Sleep(ctx, wait); err != nil {
			return zero, fmt.Errorf("%w: %w", err, lastErr)
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
