package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket shared by all requests to one provider.
// A nil limiter, or one created with rps <= 0, never blocks.
type RateLimiter struct {
	mu sync.Mutex

	rps   float64
	burst float64

	tokens     float64
	lastUpdate time.Time
	// blockedUntil holds off all requests after a 429 with Retry-After.
	blockedUntil time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	TokensAvailable   int           `json:"tokens_available"`
	TotalConsumed     int64         `json:"total_consumed"`
	TotalWaited       time.Duration `json:"total_waited"`
	BlockedUntil      time.Time     `json:"blocked_until,omitempty"`
}

// NewRateLimiter creates a limiter allowing rps requests per second with a
// burst of one second's worth of tokens (at least 1).
func NewRateLimiter(rps float64) *RateLimiter {
	burst := rps
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rps,
		burst:      burst,
		tokens:     burst,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.rps <= 0 {
		return ctx.Err()
	}

	for {
		r.mu.Lock()
		now := time.Now()
		r.refill(now)

		var wait time.Duration
		switch {
		case now.Before(r.blockedUntil):
			wait = r.blockedUntil.Sub(now)
		case r.tokens >= 1:
			r.tokens--
			r.totalConsumed++
			r.mu.Unlock()
			return nil
		default:
			wait = time.Duration((1 - r.tokens) / r.rps * float64(time.Second))
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking. Returns false if none is available.
func (r *RateLimiter) TryConsume() bool {
	if r == nil || r.rps <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.refill(now)
	if now.Before(r.blockedUntil) || r.tokens < 1 {
		return false
	}
	r.tokens--
	r.totalConsumed++
	return true
}

// Backoff drains the bucket and blocks new requests for retryAfter.
func (r *RateLimiter) Backoff(retryAfter time.Duration) {
	if r == nil || r.rps <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = 0
	if until := time.Now().Add(retryAfter); until.After(r.blockedUntil) {
		r.blockedUntil = until
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	if r == nil {
		return RateLimiterStatus{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill(time.Now())
	return RateLimiterStatus{
		RequestsPerSecond: r.rps,
		TokensAvailable:   int(r.tokens),
		TotalConsumed:     r.totalConsumed,
		TotalWaited:       r.totalWaited,
		BlockedUntil:      r.blockedUntil,
	}
}

// refill adds tokens for the time elapsed since the last update. Must be called with lock held.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now
	r.tokens += elapsed * r.rps
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
}
