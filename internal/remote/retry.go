package remote

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"
)

const (
	defaultRetryMaxRetries = 3
	defaultRetryBaseDelay  = 300 * time.Millisecond
	defaultRetryMaxDelay   = 5 * time.Second
)

// RetryPolicy configures retry/backoff for idempotent reads.
// A negative MaxRetries disables retries; zero means the default.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type transientError struct {
	err error
}

func (e transientError) Error() string { return e.err.Error() }

func (e transientError) Unwrap() error { return e.err }

func markTransient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

func isTransient(err error) bool {
	var target transientError
	return errors.As(err, &target)
}

// withDefaults fills unset fields and keeps MaxDelay >= BaseDelay.
func (p RetryPolicy) withDefaults() RetryPolicy {
	switch {
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	case p.MaxRetries == 0:
		p.MaxRetries = defaultRetryMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultRetryBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultRetryMaxDelay
	}
	p.MaxDelay = max(p.MaxDelay, p.BaseDelay)
	return p
}

// backoff doubles BaseDelay per attempt up to MaxDelay, with +/-20% jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for range attempt {
		if delay >= p.MaxDelay/2 {
			delay = p.MaxDelay
			break
		}
		delay *= 2
	}
	delay = min(delay, p.MaxDelay)
	return time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
}

func waitFor(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classifyRetry marks transport failures, 429 and 5xx responses as transient.
func classifyRetry(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.retryable() {
			return markTransient(err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return markTransient(err)
	}
	return err
}

// withRetry runs fn until it succeeds, fails permanently, or the policy is exhausted.
func withRetry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := classifyRetry(fn())
		if err == nil || !isTransient(err) || attempt >= policy.MaxRetries {
			return err
		}
		if waitErr := waitFor(ctx, policy.backoff(attempt)); waitErr != nil {
			return waitErr
		}
	}
}
