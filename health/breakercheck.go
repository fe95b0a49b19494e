package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonwraymond/ragops/resilience"
)

// BreakerChecker reports the states of a set of circuit breakers.
// A closed breaker is healthy, a half-open breaker probing recovery is
// degraded, and an open breaker is unhealthy; the worst state across
// the set wins.
type BreakerChecker struct {
	breakers []*resilience.CircuitBreaker
}

// NewBreakerChecker creates a checker named "breakers" over the given
// breakers.
func NewBreakerChecker(breakers ...*resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breakers: breakers}
}

// Name returns "breakers".
func (c *BreakerChecker) Name() string {
	return "breakers"
}

// Check snapshots every breaker.
func (c *BreakerChecker) Check(_ context.Context) Result {
	if len(c.breakers) == 0 {
		return Healthy("no breakers registered")
	}

	details := make(map[string]any, len(c.breakers))
	var open, probing []string

	for _, cb := range c.breakers {
		status := cb.Status()
		details[status.Name] = map[string]any{
			"state":                status.State.String(),
			"consecutive_failures": status.ConsecutiveFailures,
			"rejected":             status.Stats.Rejected,
		}

		switch status.State {
		case resilience.StateOpen:
			open = append(open, status.Name)
		case resilience.StateHalfOpen:
			probing = append(probing, status.Name)
		}
	}

	switch {
	case len(open) > 0:
		message := fmt.Sprintf("breakers open: %s", strings.Join(open, ", "))
		return Unhealthy(message, ErrCheckFailed).WithDetails(details)
	case len(probing) > 0:
		message := fmt.Sprintf("breakers probing recovery: %s", strings.Join(probing, ", "))
		return Degraded(message).WithDetails(details)
	default:
		return Healthy("all breakers closed").WithDetails(details)
	}
}
