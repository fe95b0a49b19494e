package cache

import (
	"context"
)

// Params are the numeric request parameters that affect a cached
// answer. Two requests with the same normalized query but different
// params are distinct cache entries.
type Params struct {
	// ResultCount is the number of chunks requested from retrieval.
	ResultCount int
	// Threshold is the minimum relevance score for the confidence gate.
	Threshold float64
}

// Stats holds cumulative cache counters. Errors counts absorbed
// backend failures; they surface here and through OnBackendError, never
// as errors to callers.
type Stats struct {
	Hits   uint64
	Misses uint64
	Sets   uint64
	Errors uint64
}

// Cache is the response cache consulted before retrieval and written
// after a successful generation.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: no method returns one. A backend outage reads as a miss
//   and writes as a no-op.
type Cache interface {
	// Get retrieves the cached payload for the query and params.
	// Returns (nil, false) on miss.
	Get(ctx context.Context, query string, params Params) ([]byte, bool)

	// Set stores a payload and registers its key under each tag's
	// reverse index for later invalidation.
	Set(ctx context.Context, query string, params Params, payload []byte, tags []string)

	// InvalidateSource deletes every entry registered under the tag and
	// the tag itself, returning the number of entries removed. Unknown
	// tags remove nothing and return 0.
	InvalidateSource(ctx context.Context, tag string) int

	// Flush deletes all entries and tags, returning the number of
	// entries removed.
	Flush(ctx context.Context) int

	// Stats returns a snapshot of cumulative counters.
	Stats() Stats
}

// Disabled is the cache used when no shared store is reachable at
// construction time. Every probe misses and every write is dropped for
// the instance's lifetime instead of re-probing the backend per call.
type Disabled struct{}

var _ Cache = (*Disabled)(nil)

// NewDisabled creates a cache that never stores anything.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Get always misses.
func (*Disabled) Get(ctx context.Context, query string, params Params) ([]byte, bool) {
	return nil, false
}

// Set drops the payload.
func (*Disabled) Set(ctx context.Context, query string, params Params, payload []byte, tags []string) {
}

// InvalidateSource removes nothing.
func (*Disabled) InvalidateSource(ctx context.Context, tag string) int {
	return 0
}

// Flush removes nothing.
func (*Disabled) Flush(ctx context.Context) int {
	return 0
}

// Stats returns zero counters.
func (*Disabled) Stats() Stats {
	return Stats{}
}
