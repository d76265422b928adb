package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestTransientMarkerSurvivesWrapping(t *testing.T) {
	t.Parallel()

	if got := markTransient(nil); got != nil {
		t.Fatalf("markTransient(nil) = %v, want nil", got)
	}

	base := errors.New("temporary")
	marked := markTransient(base)
	if !isTransient(marked) || !errors.Is(marked, base) {
		t.Fatalf("marked error = %v, want transient wrapping %v", marked, base)
	}
	if !isTransient(fmt.Errorf("outer: %w", marked)) {
		t.Fatalf("expected transient marker to survive wrapping")
	}
	if isTransient(base) {
		t.Fatalf("did not expect plain error to be transient")
	}
}

func TestRetryPolicyWithDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RetryPolicy
		want RetryPolicy
	}{
		{
			name: "zero value",
			want: RetryPolicy{MaxRetries: defaultRetryMaxRetries, BaseDelay: defaultRetryBaseDelay, MaxDelay: defaultRetryMaxDelay},
		},
		{
			name: "negative disables and max clamps to base",
			in:   RetryPolicy{MaxRetries: -1, BaseDelay: 50 * time.Millisecond, MaxDelay: 10 * time.Millisecond},
			want: RetryPolicy{MaxRetries: 0, BaseDelay: 50 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
		},
		{
			name: "explicit values kept",
			in:   RetryPolicy{MaxRetries: 7, BaseDelay: time.Second, MaxDelay: 9 * time.Second},
			want: RetryPolicy{MaxRetries: 7, BaseDelay: time.Second, MaxDelay: 9 * time.Second},
		},
	}
	for _, tt := range tests {
		if got := tt.in.withDefaults(); got != tt.want {
			t.Fatalf("%s: withDefaults() = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestRetryPolicyBackoffInRange(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
	for attempt, nominal := range map[int]time.Duration{
		0: 100 * time.Millisecond,
		1: 200 * time.Millisecond,
		2: 400 * time.Millisecond,
		4: 500 * time.Millisecond,
	} {
		got := policy.backoff(attempt)
		lower := nominal * 8 / 10
		upper := nominal*12/10 + time.Nanosecond
		if got < lower || got > upper {
			t.Fatalf("attempt %d delay = %v, want [%v, %v]", attempt, got, lower, upper)
		}
	}
}

func TestWaitForHonorsCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitFor(ctx, 100*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("waitFor(cancelled) error = %v, want %v", err, context.Canceled)
	}
	if err := waitFor(context.Background(), 2*time.Millisecond); err != nil {
		t.Fatalf("waitFor(background) error = %v", err)
	}
}

func TestWithRetryRetriesServerErrorsOnly(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := withRetry(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: http.StatusBadGateway, Message: "Bad Gateway"}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("withRetry() err=%v calls=%d, want nil after 3 calls", err, calls)
	}

	calls = 0
	err = withRetry(context.Background(), policy, func() error {
		calls++
		return &APIError{StatusCode: http.StatusNotFound, Message: "Conversation not found"}
	})
	if calls != 1 {
		t.Fatalf("404 should not be retried, calls = %d", calls)
	}
	if UserMessage(err) != "Conversation not found" {
		t.Fatalf("UserMessage() = %q", UserMessage(err))
	}

	calls = 0
	err = withRetry(context.Background(), policy, func() error {
		calls++
		return &APIError{StatusCode: http.StatusServiceUnavailable, Message: "down"}
	})
	if calls != 3 {
		t.Fatalf("retries exhausted after %d calls, want 3", calls)
	}
	if !isTransient(err) || UserMessage(err) != "down" {
		t.Fatalf("exhausted error = %v", err)
	}
}
