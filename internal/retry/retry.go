// Package retry wraps query-style requests in bounded attempts with
// exponential back-off. Raw file downloads do not use it: a missing file
// stays missing no matter how often it is asked for.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// Policy retries an operation up to Attempts times, sleeping
// BackoffFactor * 2^i after failed attempt i.
type Policy struct {
	Attempts      int
	BackoffFactor time.Duration

	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each back-off sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default is five attempts with delays of 1s, 2s, 4s, 8s.
func Default() Policy {
	return Policy{Attempts: 5, BackoffFactor: time.Second}
}

// Delay is the back-off after the zero-based attempt i failed.
func (p Policy) Delay(i int) time.Duration {
	return p.BackoffFactor * time.Duration(1<<uint(i))
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether Do would try again after err. Business
// answers (no data) and cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, domain.ErrNoData) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do runs fn until it succeeds, returns a final error, or attempts run out.
// It returns the number of attempts made.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn(ctx)
		if err == nil {
			return i + 1, nil
		}
		if !IsRetryable(err) {
			return i + 1, unwrapPermanent(err)
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		delay := p.Delay(i)
		if p.OnRetry != nil {
			p.OnRetry(i+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return i + 1, err
		}
	}

	return attempts, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
