// Package circuitbreaker stops the engine from waiting on an auxiliary
// service, such as the leaderboard cache, once that service keeps failing.
// While the breaker is open calls fail fast; after a cool-down a few probe
// calls decide whether it closes again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrCircuitOpen rejects a call while the breaker is cooling down.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects a call while every half-open probe slot is busy.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Counts accumulates outcomes since construction or the last Reset.
type Counts struct {
	Requests       int
	TotalSuccesses int
	TotalFailures  int
	Rejected       int
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	name          string
	tripAfter     int
	closeAfter    int
	coolDown      time.Duration
	probes        int
	countsAsFault func(error) bool
	onChange      func(name string, from, to State)
	now           func() time.Time

	mu       sync.Mutex
	state    State
	streak   int // consecutive failures while closed, successes while half-open
	inFlight int // half-open probes still running
	openedAt time.Time
	counts   Counts
}

// Option tunes a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.tripAfter = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close it again.
func WithSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.closeAfter = n
		}
	}
}

// WithTimeout sets the cool-down spent open before probing.
func WithTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.coolDown = d
		}
	}
}

// WithMaxHalfOpenRequests sets how many probes may run at once while
// half-open.
func WithMaxHalfOpenRequests(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.probes = n
		}
	}
}

// WithOnStateChange registers a transition hook. It runs under the
// breaker's lock and must not call back into it.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// WithIsFailure decides which errors count against the dependency. By
// default every error does.
func WithIsFailure(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.countsAsFault = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// New builds a closed breaker: five failures trip it, it cools down for 30s,
// and two successful probes, run one at a time, close it.
func New(name string, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:       name,
		tripAfter:  5,
		closeAfter: 2,
		coolDown:   30 * time.Second,
		probes:     1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn unless the breaker rejects the call, and records the
// outcome. A rejected call returns ErrCircuitOpen or ErrTooManyRequests
// without running fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.coolDown {
		cb.moveTo(StateHalfOpen)
	}

	switch cb.state {
	case StateOpen:
		cb.counts.Rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.probes {
			cb.counts.Rejected++
			return ErrTooManyRequests
		}
		cb.inFlight++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	if err != nil && (cb.countsAsFault == nil || cb.countsAsFault(err)) {
		cb.counts.TotalFailures++
		switch cb.state {
		case StateHalfOpen:
			cb.trip()
		case StateClosed:
			cb.streak++
			if cb.streak >= cb.tripAfter {
				cb.trip()
			}
		}
		return
	}

	cb.counts.TotalSuccesses++
	switch cb.state {
	case StateHalfOpen:
		cb.streak++
		if cb.streak >= cb.closeAfter {
			cb.moveTo(StateClosed)
		}
	case StateClosed:
		cb.streak = 0
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.moveTo(StateOpen)
}

func (cb *CircuitBreaker) moveTo(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.streak = 0
	cb.inFlight = 0
	if cb.onChange != nil {
		cb.onChange(cb.name, prev, next)
	}
}

// State reports the current position. An open breaker whose cool-down has
// passed still reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears its counters without firing the
// transition hook.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.streak = 0
	cb.inFlight = 0
	cb.counts = Counts{}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == StateOpen }

func (cb *CircuitBreaker) IsClosed() bool { return cb.State() == StateClosed }

// CacheBreaker guards the Redis leaderboard cache. A caller cancelling its
// own context is not held against Redis.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("leaderboard-cache",
		WithFailureThreshold(5),
		WithSuccessThreshold(2),
		WithTimeout(30*time.Second),
		WithOnStateChange(onStateChange),
		WithIsFailure(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
	)
}
