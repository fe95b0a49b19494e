package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns request instruments backed by a manual
// reader so tests can collect exactly what was recorded.
func newTestMetrics(t *testing.T) (*requestMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

// findMetric returns the named metric from rm, or nil when the
// instrument recorded nothing.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// outcomeCounts reads an int64 sum metric into a map keyed by the
// rag.outcome attribute. A missing metric yields an empty map.
func outcomeCounts(t *testing.T, rm metricdata.ResourceMetrics, name string) map[string]int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		return nil
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, found.Data)
	}
	counts := make(map[string]int64, len(sum.DataPoints))
	for _, dp := range sum.DataPoints {
		for iter := dp.Attributes.Iter(); iter.Next(); {
			if kv := iter.Attribute(); string(kv.Key) == "rag.outcome" {
				counts[kv.Value.AsString()] = dp.Value
			}
		}
	}
	return counts
}

func TestRecordRequest_CountsByOutcome(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRequest(ctx, "success", time.Millisecond, nil)
	m.RecordRequest(ctx, "success", time.Millisecond, nil)
	m.RecordRequest(ctx, "rate_limited", time.Millisecond, nil)

	counts := outcomeCounts(t, collect(t, reader), "rag.request.total")
	if len(counts) != 2 {
		t.Fatalf("expected 2 outcome series, got %d: %v", len(counts), counts)
	}
	if got := counts["success"]; got != 2 {
		t.Errorf("success count = %d, want 2", got)
	}
	if got := counts["rate_limited"]; got != 1 {
		t.Errorf("rate_limited count = %d, want 1", got)
	}
}

func TestRecordRequest_ErrorCounter(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int64
	}{
		{"success leaves the counter alone", nil, 0},
		{"failure moves the counter", errors.New("embedding unavailable"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t)
			m.RecordRequest(context.Background(), "generated", 50*time.Millisecond, tt.err)

			counts := outcomeCounts(t, collect(t, reader), "rag.request.errors")
			if got := counts["generated"]; got != tt.want {
				t.Errorf("rag.request.errors = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecordRequest_DurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRequest(context.Background(), "success", 50*time.Millisecond, nil)

	found := findMetric(collect(t, reader), "rag.request.duration_ms")
	if found == nil {
		t.Fatal("rag.request.duration_ms not collected")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("histogram count = %d, want 1", dp.Count)
	}
	if dp.Sum < 49.9 || dp.Sum > 50.1 {
		t.Errorf("histogram sum = %fms, want ~50ms", dp.Sum)
	}
}

func TestRecordRequest_SubMillisecondDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRequest(context.Background(), "cache_hit", 250*time.Microsecond, nil)

	found := findMetric(collect(t, reader), "rag.request.duration_ms")
	if found == nil {
		t.Fatal("rag.request.duration_ms not collected")
	}
	hist := found.Data.(metricdata.Histogram[float64])
	if sum := hist.DataPoints[0].Sum; sum <= 0 || sum >= 1 {
		t.Errorf("sub-millisecond hit recorded as %fms, want in (0, 1)", sum)
	}
}

func TestRecordRequest_Concurrent(t *testing.T) {
	m, reader := newTestMetrics(t)

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			m.RecordRequest(context.Background(), "success", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	counts := outcomeCounts(t, collect(t, reader), "rag.request.total")
	if got := counts["success"]; got != workers {
		t.Errorf("success count = %d, want %d", got, workers)
	}
}
