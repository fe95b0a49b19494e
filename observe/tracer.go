package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// StageMeta identifies one pipeline stage for telemetry purposes.
type StageMeta struct {
	RequestID  string // correlation id for the request (required)
	Stage      string // stage name, e.g. "embed", "search", "generate" (required)
	Dependency string // protected dependency the stage calls (optional)
}

// SpanName returns the span name for this stage, "rag." + Stage.
func (m StageMeta) SpanName() string {
	return "rag." + m.Stage
}

// Validate reports whether the required metadata is present.
func (m StageMeta) Validate() error {
	if m.Stage == "" {
		return ErrMissingStage
	}
	return nil
}

// Tracer opens and closes stage spans. Implementations are safe for
// concurrent use; EndSpan is best-effort and never panics.
type Tracer interface {
	// StartSpan opens a span for a pipeline stage.
	StartSpan(ctx context.Context, meta StageMeta) (context.Context, trace.Span)

	// EndSpan closes the span, recording err when non-nil.
	EndSpan(span trace.Span, err error)
}

// stageTracer derives span names and attributes from StageMeta.
type stageTracer struct {
	tracer trace.Tracer
}

func newTracer(t trace.Tracer) Tracer {
	return &stageTracer{tracer: t}
}

// StartSpan opens an internal span carrying the request id, stage
// name and, when set, the protected dependency. rag.error starts
// false; EndSpan flips it for failed stages.
func (t *stageTracer) StartSpan(ctx context.Context, meta StageMeta) (context.Context, trace.Span) {
	attrs := make([]attribute.KeyValue, 0, 4)
	attrs = append(attrs,
		attribute.String("request.id", meta.RequestID),
		attribute.String("rag.stage", meta.Stage),
		attribute.Bool("rag.error", false),
	)
	if meta.Dependency != "" {
		attrs = append(attrs, attribute.String("rag.dependency", meta.Dependency))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan closes the span. Failed stages get error status, the
// recorded error event and rag.error=true.
func (t *stageTracer) EndSpan(span trace.Span, err error) {
	defer span.End()

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("rag.error", true))
	span.SetStatus(codes.Error, err.Error())
}

// nullTracer hands out spans from the noop provider so callers always
// hold a usable span.
type nullTracer struct {
	tracer trace.Tracer
}

func newNoopTracer() Tracer {
	return nullTracer{tracer: tracenoop.NewTracerProvider().Tracer("")}
}

func (n nullTracer) StartSpan(ctx context.Context, meta StageMeta) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, meta.SpanName())
}

func (nullTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
