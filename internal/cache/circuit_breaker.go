package cache

import (
	"errors"
	"sync"
	"time"
)

type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerClosed:
		return "closed"
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	MaxFailures int           `json:"max_failures"`
	Timeout     time.Duration `json:"timeout"`
	// HalfOpenMaxCalls successful probes close the breaker again.
	HalfOpenMaxCalls int `json:"half_open_max_calls"`
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker stops calls to the L2 cache after repeated failures so a
// dead Redis costs one fast check per request instead of a dial timeout.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitBreakerState
	failures        int
	probes          int
	successes       int
	lastFailureTime time.Time
	openedCount     int64

	maxFailures      int
	timeout          time.Duration
	halfOpenMaxCalls int
	now              func() time.Time
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	cb := &CircuitBreaker{
		state:            CircuitBreakerClosed,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		now:              time.Now,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 1
	}
	if cb.halfOpenMaxCalls <= 0 {
		cb.halfOpenMaxCalls = 1
	}
	return cb
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitBreakerOpen
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed:
		return true
	case CircuitBreakerOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			return false
		}
		cb.state = CircuitBreakerHalfOpen
		cb.probes = 1
		cb.successes = 0
		return true
	case CircuitBreakerHalfOpen:
		if cb.probes >= cb.halfOpenMaxCalls {
			return false
		}
		cb.probes++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitBreakerClosed:
		if cb.failures >= cb.maxFailures {
			cb.trip()
		}
	case CircuitBreakerHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = CircuitBreakerOpen
	cb.probes = 0
	cb.successes = 0
	cb.openedCount++
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed:
		cb.failures = 0
	case CircuitBreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenMaxCalls {
			cb.state = CircuitBreakerClosed
			cb.failures = 0
			cb.probes = 0
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"state":           cb.state.String(),
		"failure_count":   cb.failures,
		"opened_count":    cb.openedCount,
		"last_failure":    cb.lastFailureTime.Unix(),
		"max_failures":    cb.maxFailures,
		"timeout_seconds": cb.timeout.Seconds(),
	}
}
