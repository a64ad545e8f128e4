package resilience

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// RetryOptions configures exponential backoff
type RetryOptions struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryOptions returns default retry options
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// Retrier retries operations that fail with retryable errors
type Retrier struct {
	opts   RetryOptions
	logger *utils.Logger
}

// NewRetrier creates a Retrier. A negative MaxRetries disables retries.
func NewRetrier(opts RetryOptions, logger *utils.Logger) *Retrier {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Retrier{opts: opts, logger: logger}
}

// hintedBackOff waits at least as long as the server asked for
type hintedBackOff struct {
	backoff.BackOff
	hint *time.Duration
}

func (h hintedBackOff) NextBackOff() time.Duration {
	d := h.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if *h.hint > d {
		d = *h.hint
	}
	*h.hint = 0
	return d
}

func (r *Retrier) newBackOff(ctx context.Context, hint *time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval
	b.Multiplier = r.opts.Multiplier
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	var bo backoff.BackOff = hintedBackOff{BackOff: b, hint: hint}
	bo = backoff.WithMaxRetries(bo, uint64(r.opts.MaxRetries))
	return backoff.WithContext(bo, ctx)
}

// Retry runs operation until it succeeds, fails permanently, or the
// retry budget is spent. The last operation error is returned.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	_, err := RetryWithValue(ctx, r, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// RetryWithValue is Retry for operations that produce a value
func RetryWithValue[T any](ctx context.Context, r *Retrier, operation func() (T, error)) (T, error) {
	var (
		result  T
		lastErr error
		hint    time.Duration
	)

	err := backoff.RetryNotify(func() error {
		var err error
		result, err = operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		var re *domain.RetryableError
		if errors.As(err, &re) && re.RetryAfter > 0 {
			hint = time.Duration(re.RetryAfter) * time.Second
		}
		return err
	}, r.newBackOff(ctx, &hint), func(err error, wait time.Duration) {
		r.logger.Warn().Err(err).Dur("backoff", wait).Msg("Retrying request after error")
	})

	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(lastErr, ctxErr) {
			return result, ctxErr
		}
		return result, lastErr
	}
	return result, nil
}

// IsRetryable extends domain.IsRetryable with transport timeouts.
// Context cancellation is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domain.IsRetryable(err)
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an
// HTTP date. It returns 0 when the header is absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
