package retry

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Policy bounds retries of a single external call
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // first backoff delay
	MaxDelay    time.Duration // backoff cap
}

// DefaultPolicy is 3 attempts with exponential backoff from 2s capped at 30s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that must not be retried
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

func shouldRetry(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// NewRetryPolicy builds the failsafe policy for p
func NewRetryPolicy[T any](p Policy) retrypolicy.RetryPolicy[T] {
	p = p.normalize()
	return retrypolicy.NewBuilder[T]().
		WithBackoff(p.BaseDelay, p.MaxDelay).
		WithMaxRetries(p.MaxAttempts - 1).
		HandleIf(func(_ T, err error) bool {
			return shouldRetry(err)
		}).
		ReturnLastFailure().
		Build()
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// is exhausted. The last failure is returned as is.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	return failsafe.With(NewRetryPolicy[T](p)).WithContext(ctx).Get(fn)
}
