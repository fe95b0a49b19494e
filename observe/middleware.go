package observe

import (
	"context"
	"time"
)

// StageFunc is the signature for pipeline stage functions wrapped by
// Middleware. Outputs travel through closure captures; the wrapper
// only cares about the error.
type StageFunc func(ctx context.Context) error

// Middleware wraps pipeline stages with observability (tracing and
// logging) and records terminal request outcomes on the metrics.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Context: Stage propagates context through tracing spans.
//   - Errors: errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Stage runs fn under a span named for the stage, logging completion
// and recording any error on the span. The error is returned unchanged.
// The function is not run when meta is invalid.
func (m *Middleware) Stage(ctx context.Context, meta StageMeta, fn StageFunc) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	m.tracer.EndSpan(span, err)

	logger := m.logger.WithRequest(RequestMeta{ID: meta.RequestID})
	fields := []Field{
		{Key: "stage", Value: meta.Stage},
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Warn(ctx, "stage failed", fields...)
	} else {
		logger.Debug(ctx, "stage completed", fields...)
	}

	return err
}

// RecordRequest records the terminal outcome of one request on the
// metrics and logs it with the request id.
func (m *Middleware) RecordRequest(ctx context.Context, requestID, outcome string, duration time.Duration, err error) {
	m.metrics.RecordRequest(ctx, outcome, duration, err)

	logger := m.logger.WithRequest(RequestMeta{ID: requestID})
	fields := []Field{
		{Key: "outcome", Value: outcome},
		{Key: "duration_ms", Value: float64(duration.Milliseconds())},
	}
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		logger.Error(ctx, "request failed", fields...)
	} else {
		logger.Info(ctx, "request handled", fields...)
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
