package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// IsRetryableFunc is a function that determines if an error is retryable
type IsRetryableFunc func(error) bool

// Options configures the retry behavior
type Options struct {
	// MaxRetries is the maximum number of retry attempts (not including the initial attempt)
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// BackoffFactor is the factor by which the delay increases after each retry
	BackoffFactor float64

	// JitterFactor adds randomness to the delay (0.0 = no jitter, 1.0 = 100% jitter)
	JitterFactor float64

	// RetryableErrors is a list of errors that are considered retryable
	RetryableErrors []error

	// IsRetryableFunc is a function that determines if an error is retryable
	// If provided, this takes precedence over RetryableErrors
	IsRetryableFunc IsRetryableFunc

	// Logger is a function that logs retry attempts
	Logger func(format string, args ...interface{})
}

// DefaultOptions returns default retry options
func DefaultOptions() Options {
	return Options{
		MaxRetries:      10,
		InitialDelay:    5 * time.Millisecond,
		MaxDelay:        time.Second,
		BackoffFactor:   2.0,
		JitterFactor:    0.1,
		IsRetryableFunc: IsTemporary,
	}
}

// Do executes fn until it succeeds, fails with a non-retryable error,
// exhausts MaxRetries or ctx is done
func Do[T any](ctx context.Context, fn func() (T, error), opts Options) (T, error) {
	var zero T
	var delay time.Duration

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	if opts.Logger == nil {
		opts.Logger = func(string, ...interface{}) {}
	}

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 0 {
				opts.Logger("Retry successful on attempt %d", attempt+1)
			}
			return result, nil
		}

		if !isRetryable(err, opts) {
			return zero, err
		}

		if attempt >= opts.MaxRetries {
			opts.Logger("Max retries exceeded (%d attempts): %v", attempt+1, err)
			return zero, err
		}

		if attempt == 0 {
			delay = opts.InitialDelay
		} else {
			// Apply exponential backoff
			delay = time.Duration(float64(delay) * opts.BackoffFactor)
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}

		wait := delay
		if opts.JitterFactor > 0 {
			jitter := float64(delay) * opts.JitterFactor
			wait = time.Duration(float64(delay) + (rnd.Float64()*jitter*2 - jitter))
		}

		opts.Logger("Retry attempt %d after %v: %v", attempt+1, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// IsRetryable checks if an error is retryable based on the provided retryable errors
func IsRetryable(err error, retryableErrors []error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	for _, retryableErr := range retryableErrors {
		if errors.Is(err, retryableErr) || strings.Contains(errMsg, retryableErr.Error()) {
			return true
		}
	}

	return false
}

// isRetryable checks if an error is retryable based on the options
func isRetryable(err error, opts Options) bool {
	if opts.IsRetryableFunc != nil {
		return opts.IsRetryableFunc(err)
	}
	return IsRetryable(err, opts.RetryableErrors)
}
