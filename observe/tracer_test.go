package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracer returns a stage tracer whose spans land in the
// returned recorder.
func newTestTracer(t *testing.T) (Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return newTracer(tp.Tracer("test")), recorder
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	attrs := make(map[string]attribute.Value, len(s.Attributes()))
	for _, a := range s.Attributes() {
		attrs[string(a.Key)] = a.Value
	}
	return attrs
}

func onlySpan(t *testing.T, recorder *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	return spans[0]
}

func TestStageMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta StageMeta
		want string
	}{
		{StageMeta{RequestID: "req-1", Stage: "embed"}, "rag.embed"},
		{StageMeta{RequestID: "req-1", Stage: "generate", Dependency: "generation"}, "rag.generate"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func TestStageMeta_Validate(t *testing.T) {
	valid := StageMeta{RequestID: "req-1", Stage: "search"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	invalid := StageMeta{RequestID: "req-1"}
	if !errors.Is(invalid.Validate(), ErrMissingStage) {
		t.Errorf("Validate() = %v, want ErrMissingStage", invalid.Validate())
	}
}

func TestStartSpan_Attributes(t *testing.T) {
	tests := []struct {
		name       string
		meta       StageMeta
		wantName   string
		wantAttrs  map[string]string
		wantAbsent []string
	}{
		{
			name:     "full metadata",
			meta:     StageMeta{RequestID: "req-4242", Stage: "generate", Dependency: "generation"},
			wantName: "rag.generate",
			wantAttrs: map[string]string{
				"request.id":     "req-4242",
				"rag.stage":      "generate",
				"rag.dependency": "generation",
			},
		},
		{
			name:       "no dependency",
			meta:       StageMeta{RequestID: "req-1", Stage: "cache_probe"},
			wantName:   "rag.cache_probe",
			wantAttrs:  map[string]string{"request.id": "req-1", "rag.stage": "cache_probe"},
			wantAbsent: []string{"rag.dependency"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, recorder := newTestTracer(t)

			_, span := tr.StartSpan(context.Background(), tt.meta)
			tr.EndSpan(span, nil)

			s := onlySpan(t, recorder)
			if s.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", s.Name(), tt.wantName)
			}

			attrs := spanAttrs(s)
			for key, want := range tt.wantAttrs {
				if got, ok := attrs[key]; !ok || got.AsString() != want {
					t.Errorf("%s = %v, want %q", key, got, want)
				}
			}
			for _, key := range tt.wantAbsent {
				if v, ok := attrs[key]; ok {
					t.Errorf("%s = %v, want absent", key, v)
				}
			}
			if got, ok := attrs["rag.error"]; !ok || got.AsBool() {
				t.Errorf("rag.error = %v, want false", got)
			}
		})
	}
}

func TestStartSpan_ParentPropagation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	raw := tp.Tracer("test")
	tr := newTracer(raw)

	parentCtx, parent := raw.Start(context.Background(), "handle")
	_, child := tr.StartSpan(parentCtx, StageMeta{RequestID: "req-1", Stage: "search"})
	tr.EndSpan(child, nil)
	parent.End()

	var search sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "rag.search" {
			search = s
		}
	}
	if search == nil {
		t.Fatal("rag.search span not recorded")
	}
	if search.Parent().TraceID() != parent.SpanContext().TraceID() {
		t.Error("stage span not in the parent's trace")
	}
	if !search.Parent().SpanID().IsValid() {
		t.Error("stage span has no parent span id")
	}
}

func TestEndSpan_Success(t *testing.T) {
	tr, recorder := newTestTracer(t)

	_, span := tr.StartSpan(context.Background(), StageMeta{RequestID: "req-1", Stage: "embed"})
	tr.EndSpan(span, nil)

	s := onlySpan(t, recorder)
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
}

func TestEndSpan_Error(t *testing.T) {
	tr, recorder := newTestTracer(t)

	_, span := tr.StartSpan(context.Background(), StageMeta{RequestID: "req-1", Stage: "embed"})
	tr.EndSpan(span, errors.New("embedding service unreachable"))

	s := onlySpan(t, recorder)
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if got := spanAttrs(s)["rag.error"]; !got.AsBool() {
		t.Error("rag.error = false, want true")
	}
	if len(s.Events()) == 0 {
		t.Error("error event not recorded on span")
	}
}

func TestNoopTracer_Usable(t *testing.T) {
	tr := newNoopTracer()

	ctx, span := tr.StartSpan(context.Background(), StageMeta{RequestID: "req-1", Stage: "embed"})
	if ctx == nil || span == nil {
		t.Fatal("noop tracer returned nil context or span")
	}
	tr.EndSpan(span, errors.New("ignored"))
}
