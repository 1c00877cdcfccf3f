package circuitbreaker

import (
	"errors"
	"lyrifind-api/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // upstream calls allowed
	StateOpen                  // upstream calls rejected until cooldown passes
	StateHalfOpen              // a single probe call is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name            string
	Threshold       int           // consecutive failures before opening
	Cooldown        time.Duration // time spent OPEN before a probe is allowed
	HalfOpenTimeout time.Duration // max time a probe may take before re-opening

	// OnStateChange, if set, is called after every transition while the
	// breaker lock is held. It must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// Snapshot is a point-in-time view used by /health and /stats.
type Snapshot struct {
	Name           string        `json:"name"`
	State          string        `json:"state"`
	Failures       int           `json:"failures"`
	Threshold      int           `json:"threshold"`
	Cooldown       time.Duration `json:"-"`
	TimeUntilRetry time.Duration `json:"-"`
	LastFailure    time.Time     `json:"last_failure,omitempty"`
}

// CircuitBreaker guards calls to a flaky upstream.
type CircuitBreaker struct {
	name            string
	state           State
	failures        int
	threshold       int
	cooldown        time.Duration
	halfOpenTimeout time.Duration
	lastFailureTime time.Time
	halfOpenStart   time.Time
	onStateChange   func(name string, from, to State)
	mu              sync.RWMutex
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		state:           StateClosed,
		threshold:       cfg.Threshold,
		cooldown:        cfg.Cooldown,
		halfOpenTimeout: cfg.HalfOpenTimeout,
		onStateChange:   cfg.OnStateChange,
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// Allow reports whether a call may proceed. After the cooldown the first
// caller is let through as a probe and the breaker moves to HALF-OPEN.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) < cb.cooldown {
			return false
		}
		cb.halfOpenStart = time.Now()
		cb.transition(StateHalfOpen)
		log.Infof("%s Cooldown passed, letting one probe through", logcolors.CircuitBreakerPrefix(cb.name))
		return true

	case StateHalfOpen:
		if time.Since(cb.halfOpenStart) >= cb.halfOpenTimeout {
			cb.lastFailureTime = time.Now()
			cb.transition(StateOpen)
			log.Warnf("%s Probe timed out, back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		}
		return false

	default:
		return true
	}
}

// RecordSuccess records a successful upstream call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.failures = 0
		cb.transition(StateClosed)
		log.Infof("%s Probe succeeded, circuit CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
	case StateClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed upstream call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.transition(StateOpen)
		log.Warnf("%s Probe failed, back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.transition(StateOpen)
			log.Warnf("%s %d consecutive failures, circuit OPEN for %v",
				logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.cooldown)
		}
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// IsOpen returns true if the circuit is rejecting calls
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Reset forces the breaker back to CLOSED
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	cb.halfOpenStart = time.Time{}
	cb.transition(StateClosed)
	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
}

// TimeUntilRetry returns the remaining cooldown when OPEN, the remaining
// probe window when HALF-OPEN, and 0 when CLOSED.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.timeUntilRetry()
}

func (cb *CircuitBreaker) timeUntilRetry() time.Duration {
	var remaining time.Duration
	switch cb.state {
	case StateOpen:
		remaining = cb.cooldown - time.Since(cb.lastFailureTime)
	case StateHalfOpen:
		remaining = cb.halfOpenTimeout - time.Since(cb.halfOpenStart)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns the breaker's current state in one locked read.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Snapshot{
		Name:           cb.name,
		State:          cb.state.String(),
		Failures:       cb.failures,
		Threshold:      cb.threshold,
		Cooldown:       cb.cooldown,
		TimeUntilRetry: cb.timeUntilRetry(),
		LastFailure:    cb.lastFailureTime,
	}
}
