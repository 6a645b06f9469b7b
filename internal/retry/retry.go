package retry

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
)

// Options controls a single call site's retry behavior. Each call site retries
// independently; there is no shared budget.
type Options struct {
	// MaxRetries is the total number of attempts, including the first one.
	MaxRetries int
	// InitialDelay is the wait after the first failed attempt. The wait after
	// attempt i (0-based) is InitialDelay * 2^i.
	InitialDelay time.Duration
	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait with the 1-based attempt that failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultOptions returns 3 attempts starting at a 1s delay.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.InitialDelay < 0 {
		o.InitialDelay = 0
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	return o
}

// Do invokes op until it succeeds, returns a permanent error, or runs out of
// attempts. The last error is returned unchanged.
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var lastErr error
	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if IsPermanent(err) || attempt == opts.MaxRetries-1 {
			break
		}
		delay := Backoff(opts.InitialDelay, attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay, err)
		}
		if err := opts.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// Backoff returns initial * 2^attempt.
func Backoff(initial time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return initial * time.Duration(int64(1)<<uint(attempt))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Do stops at the first permanent error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// PermanentStatus reports whether an HTTP status should not be retried:
// client errors other than request timeout and rate limiting.
func PermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	return code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}
