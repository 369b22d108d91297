// Package resilience protects outbound dependency calls with a circuit
// breaker, bounded retries, and per-call timeouts.
package resilience

import (
	"sync"
	"time"

	dErrors "trustcore/pkg/domain-errors"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and calls flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and calls fail fast.
	StateOpen
	// StateHalfOpen means the cooldown elapsed and a single probe may pass.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// StateChange reports a transition caused by a Record call.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker tracks consecutive failures for one dependency. After
// failureThreshold consecutive failures the circuit opens and calls fail
// fast without touching the dependency. Once the cooldown elapses, exactly
// one probe is let through; its outcome decides between closing the circuit
// and restarting the cooldown.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
	probeInFlight    bool
	clock            func() time.Time
}

// BreakerOption configures a Breaker instance.
type BreakerOption func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the
// circuit. Default is 5.
func WithFailureThreshold(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before allowing a probe.
// Default is 30 seconds.
func WithCooldown(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// NewBreaker creates a circuit breaker with the given name and options.
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		cooldown:         30 * time.Second,
		clock:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the breaker's name for logging and metrics.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state, applying the open-to-half-open
// transition if the cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.clock().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Allow decides whether a call may proceed. While open it fails fast with
// CodeCircuitOpen. When the cooldown has elapsed it admits exactly one probe;
// concurrent callers keep failing fast until that probe reports back.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cooldown {
			return dErrors.New(dErrors.CodeCircuitOpen, b.name+" is unavailable")
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return nil
	case StateHalfOpen:
		if b.probeInFlight {
			return dErrors.New(dErrors.CodeCircuitOpen, b.name+" is unavailable")
		}
		b.probeInFlight = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess records a successful call. A successful probe closes the
// circuit and clears the failure count.
func (b *Breaker) RecordSuccess() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateClosed
		b.failureCount = 0
		b.probeInFlight = false
		return StateChange{Closed: true}
	default:
		b.failureCount = 0
		return StateChange{}
	}
}

// RecordFailure records a failed call. A failed probe reopens the circuit
// and restarts the cooldown.
func (b *Breaker) RecordFailure() StateChange {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.clock()
		b.probeInFlight = false
		return StateChange{Opened: true}
	case StateOpen:
		return StateChange{}
	default:
		b.failureCount++
		if b.failureCount >= b.failureThreshold {
			b.state = StateOpen
			b.openedAt = b.clock()
			return StateChange{Opened: true}
		}
		return StateChange{}
	}
}

// Reset forces the breaker back to closed with zero counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.probeInFlight = false
}
