package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

const defaultCheckTimeout = 10 * time.Second

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds a full CheckAll pass.
	// Default: 10 seconds
	Timeout time.Duration
}

// Aggregator runs a set of registered checkers and combines their
// results. Checks run concurrently under a shared deadline.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	timeout := defaultCheckTimeout
	if len(config) > 0 && config[0].Timeout > 0 {
		timeout = config[0].Timeout
	}

	return &Aggregator{
		timeout:  timeout,
		checkers: make(map[string]Checker),
	}
}

// Register adds a checker under its own name, replacing any previous
// checker with that name.
func (a *Aggregator) Register(checker Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := checker.Name()
	if _, exists := a.checkers[name]; !exists {
		a.order = append(a.order, name)
	}
	a.checkers[name] = checker
}

// Unregister removes the named checker.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.checkers, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// snapshot copies the checker set so checks run without holding the
// registration lock.
func (a *Aggregator) snapshot() map[string]Checker {
	a.mu.RLock()
	defer a.mu.RUnlock()

	checkers := make(map[string]Checker, len(a.checkers))
	for name, checker := range a.checkers {
		checkers[name] = checker
	}
	return checkers
}

// Check runs the single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	checker, ok := a.checkers[name]
	a.mu.RUnlock()

	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, checker), nil
}

// CheckAll runs every registered check concurrently and returns the
// results keyed by checker name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	checkers := a.snapshot()
	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type namedResult struct {
		name string
		res  Result
	}
	ch := make(chan namedResult, len(checkers))
	for name, checker := range checkers {
		go func() {
			ch <- namedResult{name, a.runCheck(ctx, checker)}
		}()
	}
	for range checkers {
		nr := <-ch
		results[nr.name] = nr.res
	}
	return results
}

// OverallStatus reduces a result set to a single status, worst wins:
// any unhealthy check makes the whole set unhealthy, otherwise any
// degraded check makes it degraded. An empty set is healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		overall = max(overall, result.Status)
	}
	return overall
}

// runCheck runs one checker on the side so a checker that ignores ctx
// cannot hold up the whole pass.
func (a *Aggregator) runCheck(ctx context.Context, checker Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		result := checker.Check(ctx)
		result.Duration = time.Since(start)
		if result.Timestamp.IsZero() {
			result.Timestamp = start
		}
		done <- result
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		result := Unhealthy("check timed out", ErrCheckTimeout)
		result.Duration = time.Since(start)
		result.Timestamp = start
		return result
	}
}

// Checker wraps the aggregator as a single Checker named "aggregate",
// with per-check statuses in the result details.
func (a *Aggregator) Checker() Checker {
	return &aggregatorChecker{agg: a}
}

type aggregatorChecker struct {
	agg *Aggregator
}

func (c *aggregatorChecker) Name() string { return "aggregate" }

func (c *aggregatorChecker) Check(ctx context.Context) Result {
	results := c.agg.CheckAll(ctx)
	status := OverallStatus(results)

	details := make(map[string]any, len(results))
	for name, result := range results {
		details[name] = toCheckResponse(result)
	}

	return newResult(status, summaryMessage(status), nil).WithDetails(details)
}

func summaryMessage(status Status) string {
	switch status {
	case StatusDegraded:
		return "some checks degraded"
	case StatusUnhealthy:
		return "some checks failed"
	default:
		return "all checks passed"
	}
}
