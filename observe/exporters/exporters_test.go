package exporters

import (
	"context"
	"os"
	"strings"
	"testing"
)

// unsetenv clears an environment variable and restores it when the
// test ends.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestNewTracingExporter(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		env      map[string]string
		wantNil  bool
		wantErr  string
	}{
		{name: "stdout", exporter: "stdout"},
		{name: "none is nil", exporter: "none", wantNil: true},
		{name: "empty is nil", exporter: "", wantNil: true},
		{
			name:     "otlp with endpoint",
			exporter: "otlp",
			env:      map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "http://localhost:4317"},
		},
		{name: "unknown name", exporter: "zipkin", wantErr: "unknown exporter"},
		{name: "retired jaeger name", exporter: "jaeger", wantErr: "unknown exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			exp, err := NewTracingExporter(context.Background(), tt.exporter)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("NewTracingExporter() error = nil, want error")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTracingExporter() error = %v", err)
			}
			if gotNil := exp == nil; gotNil != tt.wantNil {
				t.Errorf("exporter nil = %v, want %v", gotNil, tt.wantNil)
			}
		})
	}
}

func TestNewTracingExporter_OTLPNeedsEndpoint(t *testing.T) {
	unsetenv(t, "OTEL_EXPORTER_OTLP_ENDPOINT")
	unsetenv(t, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")

	_, err := NewTracingExporter(context.Background(), "otlp")
	if err == nil {
		t.Fatal("NewTracingExporter() error = nil, want missing endpoint error")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("error = %q, want mention of the endpoint", err)
	}
}

func TestNewMetricsReader(t *testing.T) {
	tests := []struct {
		name     string
		exporter string
		wantNil  bool
		wantErr  string
	}{
		{name: "stdout", exporter: "stdout"},
		{name: "none is nil", exporter: "none", wantNil: true},
		{name: "empty is nil", exporter: "", wantNil: true},
		{name: "unknown name", exporter: "statsd", wantErr: "unknown metrics exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewMetricsReader(context.Background(), tt.exporter)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("NewMetricsReader() error = nil, want error")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMetricsReader() error = %v", err)
			}
			if gotNil := reader == nil; gotNil != tt.wantNil {
				t.Errorf("reader nil = %v, want %v", gotNil, tt.wantNil)
			}
		})
	}
}

func TestNewMetricsReader_OTLPNeedsEndpoint(t *testing.T) {
	unsetenv(t, "OTEL_EXPORTER_OTLP_ENDPOINT")
	unsetenv(t, "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")

	_, err := NewMetricsReader(context.Background(), "otlp")
	if err == nil {
		t.Fatal("NewMetricsReader() error = nil, want missing endpoint error")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("error = %q, want mention of the endpoint", err)
	}
}

// Prometheus registers on the default registry, so construct it once.
func TestNewMetricsReader_Prometheus(t *testing.T) {
	reader, err := NewMetricsReader(context.Background(), "prometheus")
	if err != nil {
		t.Fatalf("NewMetricsReader() error = %v", err)
	}
	if reader == nil {
		t.Fatal("reader = nil, want Prometheus reader")
	}
}
