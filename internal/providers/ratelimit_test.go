package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("unlimited never blocks", func(t *testing.T) {
		var nilLimiter *RateLimiter
		if err := nilLimiter.Wait(context.Background()); err != nil {
			t.Errorf("nil limiter Wait() = %v", err)
		}
		rl := NewRateLimiter(0)
		for i := 0; i < 100; i++ {
			if !rl.TryConsume() {
				t.Fatal("zero-rps limiter refused a token")
			}
		}
	})

	t.Run("burst then empty", func(t *testing.T) {
		rl := NewRateLimiter(2)
		if !rl.TryConsume() || !rl.TryConsume() {
			t.Fatal("expected burst of 2")
		}
		if rl.TryConsume() {
			t.Error("expected bucket to be empty")
		}
		if s := rl.Status(); s.TotalConsumed != 2 {
			t.Errorf("TotalConsumed = %d, want 2", s.TotalConsumed)
		}
	})

	t.Run("wait refills", func(t *testing.T) {
		rl := NewRateLimiter(50)
		for rl.TryConsume() {
		}
		start := time.Now()
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if time.Since(start) > time.Second {
			t.Error("Wait() took far too long")
		}
	})

	t.Run("backoff blocks until deadline", func(t *testing.T) {
		rl := NewRateLimiter(100)
		rl.Backoff(time.Hour)
		if rl.TryConsume() {
			t.Error("TryConsume() succeeded during backoff")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Wait() = %v, want deadline exceeded", err)
		}
	})
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{400, false},
		{401, false},
		{404, false},
		{413, true},
		{422, true},
		{429, true},
		{500, true},
		{503, true},
		{522, true},
	}
	for _, tt := range tests {
		e := &HTTPError{Provider: "x", StatusCode: tt.status}
		if e.Retryable() != tt.retryable {
			t.Errorf("status %d: Retryable() = %v", tt.status, e.Retryable())
		}
	}

	if parseRetryAfter("3") != 3*time.Second {
		t.Error("parseRetryAfter(3)")
	}
	if parseRetryAfter("soon") != 0 {
		t.Error("parseRetryAfter(soon)")
	}
}
