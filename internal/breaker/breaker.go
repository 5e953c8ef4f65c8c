// Package breaker implements the per-source failure isolation state machine.
package breaker

import (
	"sync"
	"time"

	"github.com/matchpulse/feedgate/internal/feed"
	"github.com/matchpulse/feedgate/internal/telemetry"
)

// State is the circuit breaker state.
type State int

// Legal breaker states. Transitions: Closed->Open on threshold breach,
// Open->HalfOpen after the reset timeout, HalfOpen->Closed on a successful
// trial, HalfOpen->Open on a failed trial.
const (
	Closed State = iota
	Open
	HalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker isolates a misbehaving source so retries stop consuming time and
// bandwidth budget, while still probing for recovery. Each source instance
// owns its own Breaker.
type Breaker struct {
	mu sync.Mutex

	source           string
	failureThreshold int
	resetTimeout     time.Duration
	clock            feed.Clock

	state       State
	failures    int
	lastFailure time.Time
}

// New constructs a Breaker in the Closed state.
func New(source string, failureThreshold int, resetTimeout time.Duration, clock feed.Clock) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 60 * time.Second
	}
	return &Breaker{
		source:           source,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		clock:            clock,
		state:            Closed,
	}
}

// CanAttempt reports whether a fetch attempt may proceed. When the breaker
// is Open and the reset timeout has elapsed it transitions to HalfOpen and
// admits exactly one trial; the caller must resolve that trial with
// RecordSuccess or RecordFailure. The check-then-act sequence is guarded so
// concurrent callers cannot both claim the trial slot.
func (b *Breaker) CanAttempt() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.clock.Now().Sub(b.lastFailure) >= b.resetTimeout {
			b.transition(HalfOpen)
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != Closed {
		b.transition(Closed)
	}
}

// RecordFailure bumps the failure count and opens the circuit once the
// threshold is breached. A failed HalfOpen trial reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.clock.Now()
	if b.state == HalfOpen || b.failures >= b.failureThreshold {
		if b.state != Open {
			b.transition(Open)
		}
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transition must be called with the mutex held.
func (b *Breaker) transition(next State) {
	b.state = next
	telemetry.ObserveCircuitTransition(b.source, next.String())
}
