package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// Options configures a Guard
type Options struct {
	RequestsPerMinute int // 0 disables rate limiting
	BurstSize         int
	Retry             RetryOptions
	BreakerEnabled    bool
	Breaker           BreakerConfig
}

// DefaultOptions returns sensible defaults for remote APIs
func DefaultOptions() Options {
	return Options{
		RequestsPerMinute: 120,
		BurstSize:         10,
		Retry:             DefaultRetryOptions(),
		BreakerEnabled:    true,
		Breaker: BreakerConfig{
			FailureThreshold:         5,
			SuccessThresholdHalfOpen: 1,
			ResetTimeout:             30 * time.Second,
		},
	}
}

// Guard wraps calls to one remote service with rate limiting, retries
// and a circuit breaker.
type Guard struct {
	name    string
	limiter RateLimiter
	retrier *Retrier
	breaker CircuitBreaker
	logger  *utils.Logger
}

// NewGuard creates a Guard for the named service
func NewGuard(name string, opts Options, logger *utils.Logger) *Guard {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithComponent(name)

	var limiter RateLimiter = Unlimited{}
	if opts.RequestsPerMinute > 0 {
		limiter = NewTokenBucket(opts.RequestsPerMinute, opts.BurstSize)
	}

	var breaker CircuitBreaker = NoBreaker{}
	if opts.BreakerEnabled {
		breaker = NewCircuitBreaker(opts.Breaker)
	}

	return &Guard{
		name:    name,
		limiter: limiter,
		retrier: NewRetrier(opts.Retry, logger),
		breaker: breaker,
		logger:  logger,
	}
}

// Passthrough returns a Guard that calls straight through
func Passthrough(name string) *Guard {
	return &Guard{
		name:    name,
		limiter: Unlimited{},
		retrier: NewRetrier(RetryOptions{MaxRetries: -1}, nil),
		breaker: NoBreaker{},
		logger:  utils.NewNopLogger(),
	}
}

// State returns the circuit breaker state
func (g *Guard) State() CircuitState {
	return g.breaker.State()
}

// Do runs operation under the guard
func (g *Guard) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := Call(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// Call runs operation under the guard and returns its value. Each
// attempt waits for a rate limit token; the breaker sees one outcome
// per call, after retries.
func Call[T any](ctx context.Context, g *Guard, operation func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !g.breaker.Allow() {
		g.logger.Warn().Str("state", g.breaker.State().String()).Msg("Circuit breaker is open, rejecting request")
		return zero, fmt.Errorf("%s: %w", g.name, domain.ErrCircuitOpen)
	}

	result, err := RetryWithValue(ctx, g.retrier, func() (T, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limit wait cancelled: %w", err)
		}
		return operation(ctx)
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// caller cancellation says nothing about the service's health
		case unhealthy(err):
			g.breaker.RecordFailure()
		default:
			// the service answered; a 404 or 401 is a reply, not an outage
			g.breaker.RecordSuccess()
		}
		return zero, err
	}

	g.breaker.RecordSuccess()
	return result, nil
}

// unhealthy reports whether err points at the service rather than the
// request: retryable failures, 5xx answers and transport errors.
func unhealthy(err error) bool {
	if domain.IsRetryable(err) {
		return true
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrAuthFailed)
}
