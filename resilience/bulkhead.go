package resilience

import (
	"context"
	"sync/atomic"
	"time"
)

const defaultMaxConcurrent = 10

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long to wait for a slot before rejecting.
	// Default: 0 (reject immediately)
	MaxWait time.Duration
}

// Bulkhead caps in-flight calls to a dependency so a slow collaborator
// cannot absorb every worker in the process. Slots live in a buffered
// channel; occupancy is the channel length, so the counters need no
// lock.
type Bulkhead struct {
	maxWait time.Duration
	sem     chan struct{}

	peak     atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	capacity := config.MaxConcurrent
	if capacity <= 0 {
		capacity = defaultMaxConcurrent
	}

	return &Bulkhead{
		maxWait: config.MaxWait,
		sem:     make(chan struct{}, capacity),
	}
}

// Acquire claims a slot, waiting up to MaxWait when none is free.
// Returns ErrBulkheadFull when the wait budget runs out.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		b.notePeak()
		return nil
	default:
	}

	if b.maxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}

	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	select {
	case b.sem <- struct{}{}:
		b.notePeak()
		return nil
	case <-timer.C:
		b.rejected.Add(1)
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot claimed by Acquire. An unmatched Release is a
// no-op rather than a phantom slot.
func (b *Bulkhead) Release() {
	select {
	case <-b.sem:
	default:
	}
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

func (b *Bulkhead) notePeak() {
	active := int64(len(b.sem))
	for {
		peak := b.peak.Load()
		if active <= peak || b.peak.CompareAndSwap(peak, active) {
			return
		}
	}
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := len(b.sem)
	return BulkheadMetrics{
		Active:        active,
		MaxActive:     int(b.peak.Load()),
		Available:     cap(b.sem) - active,
		MaxConcurrent: cap(b.sem),
		Rejected:      b.rejected.Load(),
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
