package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned when a call is rejected without being tried.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// breaker states.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker is a consecutive-failure circuit breaker. After the failure
// threshold trips it rejects calls for the cooldown period, then admits a
// single probe. The probe's outcome closes or reopens the circuit.
//
// Only transient failures count toward the threshold. A 404 from the
// upstream is an answer, not an outage.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	onChange  func(from, to string)

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewBreaker creates a breaker that opens after threshold consecutive
// transient failures and stays open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration, onChange func(from, to string)) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		onChange:  onChange,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed, transitioning open to half-open
// once the cooldown has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.transition(stateHalfOpen)
		return nil
	default:
		return nil
	}
}

// Record feeds a call outcome back into the breaker. Non-transient errors
// count as success for the circuit.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !Transient(err) {
		b.failures = 0
		if b.state == stateHalfOpen {
			b.transition(stateClosed)
		}
		return
	}

	b.failures++
	b.openedAt = b.now()
	switch b.state {
	case stateClosed:
		if b.failures >= b.threshold {
			b.transition(stateOpen)
		}
	case stateHalfOpen:
		b.transition(stateOpen)
	}
}

// State returns the current state name for observability.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return stateHalfOpen.String()
	}
	return b.state.String()
}

func (b *Breaker) transition(to breakerState) {
	from := b.state
	b.state = to
	if b.onChange != nil && from != to {
		b.onChange(from.String(), to.String())
	}
}
