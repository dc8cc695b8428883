package resilience

import (
	"sync"
	"time"
)

// BreakerState enumerates circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker is a circuit breaker guarding one upstream dependency. Shared across
// sessions; all access is synchronized internally.
type Breaker struct {
	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	failureThreshold    int
	resetTimeout        time.Duration
	openedAt            time.Time
	probing             bool
	now                 func() time.Time

	// OnStateChange publishes transitions (for metrics); may be nil.
	OnStateChange func(s BreakerState)
}

// NewBreaker builds a closed breaker.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While open it fails fast with
// ErrServiceDegraded until resetTimeout has elapsed, then admits exactly one
// trial call in half-open; concurrent callers are rejected until the trial
// outcome is recorded.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return ErrServiceDegraded
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrServiceDegraded
		}
		b.probing = true
		return nil
	}
	return nil
}

// RecordSuccess notes a successful call: closes from half-open, clears the
// failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probing = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// Release returns an admitted-but-unused call slot (e.g. the call was served
// from cache) without treating it as a probe outcome.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// RecordFailure notes a failed call: reopens from half-open, opens from
// closed once the consecutive failure threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	switch b.state {
	case StateHalfOpen:
		b.openedAt = b.now()
		b.transition(StateOpen)
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	}
}

// State returns the current state, accounting for reset timeout expiry.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) transition(s BreakerState) {
	b.state = s
	if s == StateClosed {
		b.consecutiveFailures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(s)
	}
}
