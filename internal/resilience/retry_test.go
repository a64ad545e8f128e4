package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

func fastRetrier(max int) *Retrier {
	return NewRetrier(RetryOptions{
		MaxRetries:      max,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}, nil)
}

// TestRetry_SucceedsAfterRetryableErrors retries 503s
func TestRetry_SucceedsAfterRetryableErrors(t *testing.T) {
	calls := 0
	v, err := RetryWithValue(context.Background(), fastRetrier(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", domain.NewAPIError("pinecone", http.StatusServiceUnavailable, "busy", nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

// TestRetry_PermanentError stops immediately
func TestRetry_PermanentError(t *testing.T) {
	calls := 0
	bad := domain.NewAPIError("pinecone", http.StatusBadRequest, "bad request", nil)
	err := fastRetrier(5).Retry(context.Background(), func() error {
		calls++
		return bad
	})
	assert.Equal(t, bad, err)
	assert.Equal(t, 1, calls)
}

// TestRetry_Exhausted returns the last error
func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	err := fastRetrier(2).Retry(context.Background(), func() error {
		calls++
		return domain.ErrRateLimited
	})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 3, calls)
}

// TestRetry_NoRetries runs once
func TestRetry_NoRetries(t *testing.T) {
	calls := 0
	_ = NewRetrier(RetryOptions{MaxRetries: -1}, nil).Retry(context.Background(), func() error {
		calls++
		return domain.ErrTimeout
	})
	assert.Equal(t, 1, calls)
}

// TestRetry_ContextCancelled stops retrying
func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewRetrier(RetryOptions{MaxRetries: 10, InitialInterval: 50 * time.Millisecond}, nil).Retry(ctx, func() error {
		calls++
		cancel()
		return domain.ErrRateLimited
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// TestIsRetryable covers transport-level classification
func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&domain.RetryableError{Err: errors.New("x")}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

// TestParseRetryAfter parses seconds and HTTP dates
func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-3"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(future)
	assert.Greater(t, d, 50*time.Minute)
}
