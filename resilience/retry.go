package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the
	// first).
	// Default: 3
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Attempt n waits
	// min(BaseDelay * 2^(n-1), MaxDelay) scaled by the jitter factor.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries before jitter.
	// Default: 30s
	MaxDelay time.Duration

	// RetryIf reports whether an error is transient and worth another
	// attempt. Errors it rejects propagate immediately.
	// Default: all non-nil errors trigger retry.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.RetryIf == nil {
		c.RetryIf = func(err error) bool { return err != nil }
	}
	return c
}

// RetryError wraps the last failure after every attempt was used. It
// matches ErrRetriesExhausted with errors.Is and unwraps to the last
// underlying cause.
type RetryError struct {
	// Attempts is the number of tries made, including the first.
	Attempts int
	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	return fmt.Sprintf("resilience: retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Is reports whether target is ErrRetriesExhausted.
func (e *RetryError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// Unwrap returns the last underlying cause.
func (e *RetryError) Unwrap() error {
	return e.Err
}

// Retry implements bounded exponential backoff with jitter.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	return &Retry{config: config.withDefaults()}
}

// Execute runs the operation, retrying transient failures until the
// attempt budget is spent. The wait between attempts honors context
// cancellation. When every attempt fails it returns a *RetryError
// carrying the last cause.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		// Non-transient failures propagate unchanged
		if !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			return &RetryError{Attempts: attempt, Err: err}
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := wait(ctx, delay); err != nil {
			return err
		}
	}
}

// wait blocks for d or until ctx is cancelled, whichever comes first.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// delay computes the backoff for the given attempt: exponential growth
// capped at MaxDelay, then scaled by a factor drawn uniformly from
// [0.75, 1.25] so synchronized clients spread out.
func (r *Retry) delay(attempt int) time.Duration {
	backoff := float64(r.config.BaseDelay) * math.Pow(2, float64(attempt-1))
	backoff = min(backoff, float64(r.config.MaxDelay))

	// #nosec G404 -- jitter is non-cryptographic timing variance.
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(backoff * factor)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
