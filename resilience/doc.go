// Package resilience shields the pipeline from misbehaving
// dependencies.
//
// Four patterns cover the usual failure modes. A CircuitBreaker stops
// calling a dependency once consecutive tracked failures cross its
// threshold, then probes for recovery after a cooldown. Retry reruns
// transient failures under an attempt budget with capped, jittered
// exponential backoff. Bulkhead caps how many calls may be in flight
// at once. Timeout bounds a single attempt.
//
// Each wrapper works alone; an Executor composes any subset in a
// fixed nesting:
//
//	executor := resilience.NewExecutor(
//	    resilience.WithBulkhead(bh),
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return embedder.Embed(ctx, query)
//	})
//
// Retry sits beneath the breaker, so one exhausted retry sequence
// registers as a single failure and an open circuit rejects calls
// before any backoff delay is spent. Failures surface as sentinels
// (ErrCircuitOpen, ErrRetriesExhausted, ErrBulkheadFull, ErrTimeout)
// that callers match with errors.Is.
package resilience
