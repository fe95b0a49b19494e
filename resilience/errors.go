package resilience

import "errors"

// The failure classes callers branch on with errors.Is. Wrappers that
// carry extra detail (OpenError, RetryError) unwrap to these.
var (
	// ErrCircuitOpen is matched by the *OpenError a breaker returns
	// when it short-circuits a call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRetriesExhausted is matched by the *RetryError returned after
	// the final attempt fails.
	ErrRetriesExhausted = errors.New("resilience: retries exhausted")

	// ErrBulkheadFull is returned when no execution slot frees up in
	// time.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation exceeds its time budget.
	ErrTimeout = errors.New("resilience: operation timed out")
)
