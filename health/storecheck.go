package health

import (
	"context"
	"time"
)

// Pinger is the slice of the store contract the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports whether the shared store backend is reachable.
// The cache and rate limiter degrade rather than fail when the store
// is down, so an unhealthy store means the process is serving with
// admission open and caching off.
type StoreChecker struct {
	pinger Pinger
}

// NewStoreChecker creates a checker named "store" over the given
// backend.
func NewStoreChecker(pinger Pinger) *StoreChecker {
	return &StoreChecker{pinger: pinger}
}

// Name returns "store".
func (c *StoreChecker) Name() string {
	return "store"
}

// Check pings the backend.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if c.pinger == nil {
		return Degraded("no store configured")
	}

	start := time.Now()
	if err := c.pinger.Ping(ctx); err != nil {
		return Unhealthy("store unreachable", err)
	}

	return Healthy("store reachable").WithDetails(map[string]any{
		"ping": time.Since(start).String(),
	})
}
