package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Retry defaults for outbound partner calls
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// HTTPStatusError is returned for a partner response outside the 2xx range
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("partner responded with HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("partner responded with HTTP %d: %s", e.StatusCode, e.Body)
}

// IsClientError reports whether the status is in the 4xx range
func (e *HTTPStatusError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// RetryPolicy controls WithRetry. Zero fields take the defaults.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// IsRetryable decides whether an attempt's error is worth another attempt
	IsRetryable func(err error) bool
	// Sleep waits between attempts; replaced in tests
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns 3 attempts with 1s, 2s backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		IsRetryable: IsRetryable,
		Sleep:       sleepContext,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.IsRetryable == nil {
		p.IsRetryable = IsRetryable
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Backoff returns the delay before the attempt following attempt n (1-based):
// base * 2^(n-1)
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return p.BaseDelay << (n - 1)
}

// IsRetryable treats 4xx responses as final and everything else as transient
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return !statusErr.IsClientError()
	}
	return true
}

// WithRetry runs fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are exhausted. It returns the number of attempts made and
// the last error.
func WithRetry(ctx context.Context, fn func(ctx context.Context, attempt int) error, policy RetryPolicy) (int, error) {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if attempt == policy.MaxAttempts || !policy.IsRetryable(lastErr) {
			return attempt, lastErr
		}

		delay := policy.Backoff(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, lastErr)
		}
		if err := policy.Sleep(ctx, delay); err != nil {
			return attempt, lastErr
		}
	}
	return policy.MaxAttempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
