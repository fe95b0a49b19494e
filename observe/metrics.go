package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request-level pipeline metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one handled request with its terminal
	// outcome, duration and error status.
	RecordRequest(ctx context.Context, outcome string, duration time.Duration, err error)
}

// requestMetrics implements Metrics on OpenTelemetry instruments.
type requestMetrics struct {
	total    metric.Int64Counter
	errored  metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics registers the request instruments on meter.
func newMetrics(meter metric.Meter) (*requestMetrics, error) {
	var (
		m   requestMetrics
		err error
	)
	if m.total, err = meter.Int64Counter(
		"rag.request.total",
		metric.WithDescription("Handled requests by terminal outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.errored, err = meter.Int64Counter(
		"rag.request.errors",
		metric.WithDescription("Requests that surfaced an error to the caller"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram(
		"rag.request.duration_ms",
		metric.WithDescription("End-to-end request latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRequest counts the request under its outcome label and
// records its latency. The error counter moves only for requests that
// surfaced an error.
func (m *requestMetrics) RecordRequest(ctx context.Context, outcome string, duration time.Duration, err error) {
	byOutcome := metric.WithAttributes(attribute.String("rag.outcome", outcome))

	m.total.Add(ctx, 1, byOutcome)
	if err != nil {
		m.errored.Add(ctx, 1, byOutcome)
	}
	m.duration.Record(ctx, float64(duration)/float64(time.Millisecond), byOutcome)
}

// noopMetrics discards every recording.
type noopMetrics struct{}

func (noopMetrics) RecordRequest(context.Context, string, time.Duration, error) {}
