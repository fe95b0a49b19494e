package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
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

// stateLogSize is the number of recent transitions kept for Status.
const stateLogSize = 16

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected dependency in errors and status
	// snapshots, e.g. "embedding" or "generation".
	Name string

	// FailureThreshold is the number of consecutive tracked failures
	// before opening the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing
	// a recovery probe.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required before the circuit closes again.
	// Default: 1
	SuccessThreshold int

	// OnStateChange is called on every state transition. It runs under
	// the breaker's lock; keep it fast and never call back into the
	// breaker from it.
	OnStateChange func(from, to State)

	// IsFailure reports whether an error counts toward the failure
	// threshold. Errors it rejects pass through the breaker without
	// affecting its state in either direction.
	// Default: all non-nil errors count.
	IsFailure func(err error) bool
}

// OpenError is returned when a call is short-circuited. It matches
// ErrCircuitOpen with errors.Is and carries an estimate of when a
// retry may pass.
type OpenError struct {
	// Name is the breaker that rejected the call.
	Name string
	// RetryAfter estimates how long until the breaker allows a probe.
	// While a probe is already in flight it is the full reset timeout,
	// a deliberately conservative bound.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	if e.Name == "" {
		return "resilience: circuit breaker is open"
	}
	return fmt.Sprintf("resilience: circuit breaker %q is open", e.Name)
}

// Is reports whether target is ErrCircuitOpen.
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// StateChange records one state transition.
type StateChange struct {
	From State
	To   State
	At   time.Time
}

// CircuitBreakerStats holds cumulative counters over the breaker's
// lifetime. Total counts every Execute call; Rejected counts the
// short-circuited subset; Succeeded and Failed count completed calls.
// Untracked failures appear in Total only.
type CircuitBreakerStats struct {
	Total     uint64
	Succeeded uint64
	Failed    uint64
	Rejected  uint64
}

// CircuitBreakerStatus is a read-only snapshot of a breaker.
type CircuitBreakerStatus struct {
	Name                 string
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastFailure          time.Time
	Stats                CircuitBreakerStats
	RecentTransitions    []StateChange
}

// CircuitBreaker guards calls to one external dependency. Construct
// one per dependency and share it across requests for the process
// lifetime. All state lives behind a single mutex held only for
// transition bookkeeping, never across the protected call.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	lastFailure   time.Time
	probeInFlight bool
	stats         CircuitBreakerStats
	log           [stateLogSize]StateChange
	logNext       int
	logLen        int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// FailureKinds builds an IsFailure predicate that tracks only errors
// matching one of the given targets.
func FailureKinds(targets ...error) func(error) bool {
	return func(err error) bool {
		if err == nil {
			return false
		}
		for _, target := range targets {
			if target != nil && errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Execute runs the operation through the circuit breaker. The
// operation's error is returned unchanged; only a short-circuited call
// yields an *OpenError.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	// The protected call runs outside the lock
	err := op(ctx)
	cb.afterCall(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Name returns the breaker's configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset forces the breaker closed and zeroes the consecutive counters.
// Cumulative stats are preserved. Administrative override.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.transitionLocked(StateClosed)
	}
	cb.failures = 0
	cb.successes = 0
	cb.probeInFlight = false
}

// Status returns a read-only snapshot of state, counters, stats, and
// recent transitions.
func (cb *CircuitBreaker) Status() CircuitBreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStatus{
		Name:                 cb.config.Name,
		State:                cb.currentStateLocked(),
		ConsecutiveFailures:  cb.failures,
		ConsecutiveSuccesses: cb.successes,
		LastFailure:          cb.lastFailure,
		Stats:                cb.stats,
		RecentTransitions:    cb.logSnapshotLocked(),
	}
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.stats.Total++

	switch cb.currentStateLocked() {
	case StateOpen:
		cb.stats.Rejected++
		retryAfter := cb.config.ResetTimeout - time.Since(cb.lastFailure)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &OpenError{Name: cb.config.Name, RetryAfter: retryAfter}
	case StateHalfOpen:
		if cb.probeInFlight {
			// Another caller owns the probe; gate individually
			cb.stats.Rejected++
			return &OpenError{Name: cb.config.Name, RetryAfter: cb.config.ResetTimeout}
		}
		cb.probeInFlight = true
	}

	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err == nil:
		cb.onSuccessLocked()
	case cb.config.IsFailure(err):
		cb.onFailureLocked()
	default:
		// Untracked failure: release the probe slot, touch nothing else
		if cb.state == StateHalfOpen {
			cb.probeInFlight = false
		}
	}
}

func (cb *CircuitBreaker) onSuccessLocked() {
	cb.stats.Succeeded++

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probeInFlight = false
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.failures = 0
			cb.successes = 0
			cb.transitionLocked(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailureLocked() {
	cb.stats.Failed++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// Failed probe, back to open
		cb.probeInFlight = false
		cb.successes = 0
		cb.transitionLocked(StateOpen)
	}
}

// currentStateLocked lazily moves Open to HalfOpen once the reset
// timeout has elapsed.
func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.probeInFlight = false
		cb.successes = 0
		cb.transitionLocked(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	cb.state = to

	cb.log[cb.logNext] = StateChange{From: from, To: to, At: time.Now()}
	cb.logNext = (cb.logNext + 1) % stateLogSize
	if cb.logLen < stateLogSize {
		cb.logLen++
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// logSnapshotLocked returns the recorded transitions oldest first.
func (cb *CircuitBreaker) logSnapshotLocked() []StateChange {
	if cb.logLen == 0 {
		return nil
	}
	out := make([]StateChange, 0, cb.logLen)
	start := cb.logNext - cb.logLen
	if start < 0 {
		start += stateLogSize
	}
	for i := 0; i < cb.logLen; i++ {
		out = append(out, cb.log[(start+i)%stateLogSize])
	}
	return out
}
