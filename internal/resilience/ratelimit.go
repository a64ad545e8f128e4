package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiter controls the rate of outbound API calls
type RateLimiter interface {
	Wait(ctx context.Context) error
	TryAcquire() bool
	Available() float64
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	perSecond  float64
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a limiter allowing requestsPerMinute on average
// with bursts of up to burstSize.
func NewTokenBucket(requestsPerMinute, burstSize int) *TokenBucket {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burstSize <= 0 {
		burstSize = 1
	}
	return &TokenBucket{
		tokens:     float64(burstSize),
		capacity:   float64(burstSize),
		perSecond:  float64(requestsPerMinute) / 60.0,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// refill must be called with mu held
func (tb *TokenBucket) refill() {
	now := tb.now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.perSecond
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Wait blocks until a token is available or ctx is done
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - tb.tokens) / tb.perSecond * float64(time.Second))
		tb.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token if one is available
func (tb *TokenBucket) TryAcquire() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Available returns the current number of tokens
func (tb *TokenBucket) Available() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// Unlimited is a RateLimiter that never blocks
type Unlimited struct{}

func (Unlimited) Wait(context.Context) error { return nil }
func (Unlimited) TryAcquire() bool           { return true }
func (Unlimited) Available() float64         { return 1 }
