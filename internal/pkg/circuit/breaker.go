// Package circuit implements a per-service CLOSED/OPEN/HALF_OPEN breaker.
package circuit

import (
	"sync"
	"time"

	"polytrader/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker trips OPEN after threshold consecutive recorded failures and probes
// recovery through HALF_OPEN once resetAfter has elapsed since the last
// failure. The caller decides what counts as a failure.
type Breaker struct {
	mu          sync.Mutex
	name        string
	state       State
	failures    int
	threshold   int
	resetAfter  time.Duration
	lastFailure time.Time
}

func NewBreaker(name string, threshold int, resetAfter time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetAfter <= 0 {
		resetAfter = 30 * time.Second
	}
	return &Breaker{
		name:       name,
		state:      StateClosed,
		threshold:  threshold,
		resetAfter: resetAfter,
	}
}

// Allow reports whether a call may proceed. When the breaker is OPEN and the
// reset window has elapsed it transitions to HALF_OPEN and lets one probe
// through; otherwise OPEN fails fast.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) >= b.resetAfter {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess zeroes the failure counter; a success while HALF_OPEN closes
// the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.transition(StateClosed)
	}
	b.failures = 0
}

// RecordFailure counts one failure; reaching the threshold (or failing the
// HALF_OPEN probe) opens the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.threshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	logger.Warnf("circuit %s: %s -> %s (failures=%d/%d, reset=%s)",
		b.name, from, to, b.failures, b.threshold, b.resetAfter)
}
