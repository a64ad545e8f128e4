package resilience

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a service that keeps failing
type CircuitBreaker interface {
	Allow() bool
	RecordSuccess()
	RecordFailure()
	State() CircuitState
}

// BreakerConfig holds circuit breaker thresholds
type BreakerConfig struct {
	FailureThreshold         int
	SuccessThresholdHalfOpen int
	ResetTimeout             time.Duration
}

type breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     CircuitState
	failures  int
	successes int
	changedAt time.Time
	now       func() time.Time
}

// NewCircuitBreaker creates a circuit breaker. Zero thresholds get
// defaults of 5 failures, 1 half-open success and a 30s reset.
func NewCircuitBreaker(cfg BreakerConfig) CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThresholdHalfOpen <= 0 {
		cfg.SuccessThresholdHalfOpen = 1
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &breaker{
		cfg:       cfg,
		state:     StateClosed,
		changedAt: time.Now(),
		now:       time.Now,
	}
}

func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(b.changedAt) >= b.cfg.ResetTimeout {
			b.moveTo(StateHalfOpen)
			return true
		}
	}
	return false
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThresholdHalfOpen {
			b.moveTo(StateClosed)
		}
	}
}

func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.moveTo(StateOpen)
		}
	case StateHalfOpen:
		b.moveTo(StateOpen)
	}
}

func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) moveTo(s CircuitState) {
	b.state = s
	b.changedAt = b.now()
	b.failures = 0
	b.successes = 0
}

// NoBreaker always allows requests
type NoBreaker struct{}

func (NoBreaker) Allow() bool         { return true }
func (NoBreaker) RecordSuccess()      {}
func (NoBreaker) RecordFailure()      {}
func (NoBreaker) State() CircuitState { return StateClosed }
