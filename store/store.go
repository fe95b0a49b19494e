package store

import (
	"context"
	"time"
)

// Store is the backend contract shared by the response cache and the
// rate limiter. Implementations must be safe for concurrent use.
//
// Callers treat every returned error as a backend failure and degrade
// (fail open for admission, fail to miss for cache reads); a Store
// implementation should therefore only return errors for real
// infrastructure problems, never for clean misses.
type Store interface {
	// Get returns the value stored under key. ok is false on a clean miss
	// or an expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with the given TTL. A TTL <= 0 stores
	// nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many of them existed.
	// A set counts as a single key regardless of its size.
	Delete(ctx context.Context, keys ...string) (int, error)

	// AddToSet adds member to the set stored under key, creating the set
	// if needed, and refreshes the set's TTL. A TTL <= 0 stores nothing.
	AddToSet(ctx context.Context, key, member string, ttl time.Duration) error

	// SetMembers returns the members of the set stored under key. A
	// missing or expired set yields an empty slice, not an error.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Scan returns every live key with the given prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)

	// Admit atomically discards events older than window under key, counts
	// the remainder, and appends the current time when the count is below
	// limit. It reports whether the event was admitted. The
	// discard-count-append sequence must be a single atomic operation per
	// key; separate read and write round trips over-admit under
	// concurrency.
	Admit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Count returns the number of events under key within window. It is a
	// best-effort read taken outside the admission path and may be stale.
	Count(ctx context.Context, key string, window time.Duration) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
