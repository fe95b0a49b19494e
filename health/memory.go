package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the runtime memory checker.
type MemoryCheckerConfig struct {
	// WarningThreshold is the allocation ratio that flips the status to
	// degraded. Must be in (0, 1). Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the allocation ratio that flips the status
	// to unhealthy. Must be in (0, 1). Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the allocation budget in bytes the ratios are
	// computed against. Zero means measure against the memory obtained
	// from the OS so far.
	MaxAlloc uint64
}

// MemoryChecker reports runtime heap pressure.
type MemoryChecker struct {
	warning  float64
	critical float64
	maxAlloc uint64
}

func ratioOrDefault(v, def float64) float64 {
	if v <= 0 || v >= 1 {
		return def
	}
	return v
}

// NewMemoryChecker creates a checker named "memory". Thresholds
// outside (0, 1) fall back to their defaults, and the critical
// threshold never sits below the warning one.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	warning := ratioOrDefault(config.WarningThreshold, 0.8)
	return &MemoryChecker{
		warning:  warning,
		critical: max(ratioOrDefault(config.CriticalThreshold, 0.95), warning),
		maxAlloc: config.MaxAlloc,
	}
}

// Name returns "memory".
func (m *MemoryChecker) Name() string { return "memory" }

// Check reads runtime memory stats and grades allocation against the
// configured budget.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	budget := m.maxAlloc
	if budget == 0 {
		budget = stats.Sys
	}
	if budget == 0 {
		return Healthy("memory stats unavailable")
	}

	ratio := float64(stats.Alloc) / float64(budget)
	details := map[string]any{
		"alloc_bytes":   stats.Alloc,
		"sys_bytes":     stats.Sys,
		"max_alloc":     budget,
		"usage_percent": ratio * 100,
		"heap_in_use":   stats.HeapInuse,
		"num_gc":        stats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	pct := ratio * 100
	switch {
	case ratio >= m.critical:
		return Unhealthy(fmt.Sprintf("memory usage critical: %.1f%%", pct), ErrCheckFailed).WithDetails(details)
	case ratio >= m.warning:
		return Degraded(fmt.Sprintf("memory usage high: %.1f%%", pct)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("memory usage normal: %.1f%%", pct)).WithDetails(details)
	}
}
