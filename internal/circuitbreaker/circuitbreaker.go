// Package circuitbreaker implements the gateway's circuit breaker
// (component G): a single process-wide three-state gate in front of the
// upstream HTTP call, tripped by consecutive qualifying failures rather
// than a weighted error rate.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests.
	StateOpen
	// StateHalfOpen allows probe requests through while the breaker
	// decides whether to close or reopen.
	StateHalfOpen
)

// String returns a human-readable state name.
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

// Config holds circuit breaker parameters.
type Config struct {
	FailureThreshold int           // consecutive qualifying failures to trip, spec default 5
	OpenTimeout      time.Duration // time in OPEN before admission checks allow a half-open probe, spec default 30s
}

// DefaultConfig returns the spec's exact defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker is the gateway's single process-wide circuit breaker.
type Breaker struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	lastUsed            time.Time
	threshold           int
	openTimeout         time.Duration

	// onTransition, if set, is invoked (without the lock held) whenever
	// the phase actually changes, so callers can drive gauge/counter
	// metrics exactly at transition points per spec §4.G.
	onTransition func(State)
}

// New creates a breaker with the given config. onTransition may be nil.
func New(cfg Config, onTransition func(State)) *Breaker {
	return &Breaker{
		state:        StateClosed,
		threshold:    cfg.FailureThreshold,
		openTimeout:  cfg.OpenTimeout,
		lastUsed:     time.Now(),
		onTransition: onTransition,
	}
}

// State returns the current breaker phase, performing the lazy
// open->half-open transition first if the timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	changed := b.maybeHalfOpenLocked(time.Now())
	state := b.state
	b.mu.Unlock()
	b.notify(StateHalfOpen, changed)
	return state
}

func (b *Breaker) maybeHalfOpenLocked(now time.Time) bool {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.openTimeout {
		b.state = StateHalfOpen
		return true
	}
	return false
}

// transitionLocked sets the new state and reports whether it actually
// changed. Callers fire onTransition themselves after releasing the lock,
// so metrics are never recorded while the breaker lock is held (spec §5).
func (b *Breaker) transitionLocked(to State) bool {
	if b.state == to {
		return false
	}
	b.state = to
	return true
}

func (b *Breaker) notify(state State, changed bool) {
	if changed && b.onTransition != nil {
		b.onTransition(state)
	}
}

// Allow reports whether a call may proceed. It performs the lazy
// open->half-open transition. In half-open, every concurrent admission is
// allowed through (optimistic probing per spec §4.G); the first completion
// to report success closes the breaker.
func (b *Breaker) Allow() bool {
	now := time.Now()
	b.mu.Lock()
	changed := b.maybeHalfOpenLocked(now)
	state := b.state
	b.lastUsed = now
	b.mu.Unlock()
	b.notify(StateHalfOpen, changed)

	switch state {
	case StateClosed, StateHalfOpen:
		return true
	default: // StateOpen
		return false
	}
}

// RecordSuccess reports a successful call. In half-open this closes the
// breaker and resets the failure counter; in closed it resets the
// consecutive-failure counter to 0 (a qualifying-failure streak does not
// survive an intervening success).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.lastUsed = time.Now()
	b.consecutiveFailures = 0
	changed := false
	if b.state == StateHalfOpen {
		changed = b.transitionLocked(StateClosed)
	}
	b.mu.Unlock()
	b.notify(StateClosed, changed)
}

// RecordError reports a failed call's upstream error code, or nil for a
// transport/network failure. A non-qualifying code (anything but nil or
// >=500) is a true no-op: it does not touch consecutiveFailures or phase.
func (b *Breaker) RecordError(errorCode *int) {
	if !isQualifyingFailure(errorCode) {
		return
	}

	b.mu.Lock()
	now := time.Now()
	b.lastUsed = now
	b.consecutiveFailures++
	changed := false

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.threshold {
			b.openedAt = now
			changed = b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = now
		changed = b.transitionLocked(StateOpen)
	}
	b.mu.Unlock()
	b.notify(StateOpen, changed)
}

// isQualifyingFailure implements spec §3's rule: no code (network/
// transport) or errorCode >= 500 qualifies. 4xx (including 429) never
// qualifies.
func isQualifyingFailure(errorCode *int) bool {
	return errorCode == nil || *errorCode >= 500
}

// LastUsed returns the time of last activity.
func (b *Breaker) LastUsed() time.Time {
	b.mu.Lock()
	t := b.lastUsed
	b.mu.Unlock()
	return t
}
