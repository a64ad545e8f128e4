package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestTokenBucket_Burst allows a burst then blocks
func TestTokenBucket_Burst(t *testing.T) {
	now := time.Now()
	tb := NewTokenBucket(60, 3)
	tb.now = func() time.Time { return now }
	tb.lastRefill = now

	assert.True(t, tb.TryAcquire())
	assert.True(t, tb.TryAcquire())
	assert.True(t, tb.TryAcquire())
	assert.False(t, tb.TryAcquire())

	// one token per second at 60 rpm
	now = now.Add(time.Second)
	assert.InDelta(t, 1.0, tb.Available(), 0.001)
	assert.True(t, tb.TryAcquire())
}

// TestTokenBucket_CapacityCap never exceeds the burst size
func TestTokenBucket_CapacityCap(t *testing.T) {
	now := time.Now()
	tb := NewTokenBucket(600, 2)
	tb.now = func() time.Time { return now }
	tb.lastRefill = now

	now = now.Add(time.Hour)
	assert.InDelta(t, 2.0, tb.Available(), 0.001)
}

// TestTokenBucket_Defaults applies defaults for non-positive input
func TestTokenBucket_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		rpm      int
		burst    int
		capacity float64
	}{
		{"standard", 60, 10, 10},
		{"zero rpm", 0, 5, 5},
		{"negative burst", 60, -5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := NewTokenBucket(tt.rpm, tt.burst)
			assert.Equal(t, tt.capacity, tb.capacity)
			assert.Greater(t, tb.perSecond, 0.0)
		})
	}
}

// TestTokenBucket_WaitCancelled returns the context error
func TestTokenBucket_WaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	assert.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

// TestUnlimited never blocks
func TestUnlimited(t *testing.T) {
	var l RateLimiter = Unlimited{}
	assert.NoError(t, l.Wait(context.Background()))
	assert.True(t, l.TryAcquire())
	assert.Equal(t, 1.0, l.Available())
}
