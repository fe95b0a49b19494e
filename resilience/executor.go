package resilience

import (
	"context"
	"time"
)

// layer is the shape shared by the pattern wrappers, letting the
// executor compose any subset of them uniformly.
type layer interface {
	Execute(ctx context.Context, op func(context.Context) error) error
}

// Executor composes resilience patterns around one dependency call.
// The fixed nesting keeps retry beneath the breaker: an exhausted
// retry sequence counts once against the breaker, and an open circuit
// fails fast before any retry loop can start.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	bulkhead       *Bulkhead
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.circuitBreaker = cb }
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithBulkhead adds concurrency isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithTimeout adds a per-attempt deadline to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout}) }
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.circuitBreaker
}

// layers lists the configured wrappers outermost first:
// bulkhead caps concurrency before anything else runs, the breaker
// fails fast on a down dependency, retry absorbs transient failures,
// and the timeout bounds each individual attempt.
func (e *Executor) layers() []layer {
	layers := make([]layer, 0, 4)
	if e.bulkhead != nil {
		layers = append(layers, e.bulkhead)
	}
	if e.circuitBreaker != nil {
		layers = append(layers, e.circuitBreaker)
	}
	if e.retry != nil {
		layers = append(layers, e.retry)
	}
	if e.timeout != nil {
		layers = append(layers, e.timeout)
	}
	return layers
}

// Execute runs the operation through all configured patterns.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	layers := e.layers()
	for i := len(layers) - 1; i >= 0; i-- {
		wrap, inner := layers[i], execute
		execute = func(ctx context.Context) error {
			return wrap.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}
