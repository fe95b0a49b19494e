package observe

import "errors"

// Errors reported by Config.Validate. The exporter and level errors
// are wrapped with the offending name; match them with errors.Is.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrUnknownTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrUnknownMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrUnknownLogLevel        = errors.New("observe: unknown log level")
	ErrSamplePctOutOfRange    = errors.New("observe: sample percentage must be between 0.0 and 1.0")
)

// ErrNilObserver is returned by MiddlewareFromObserver when handed a
// nil Observer.
var ErrNilObserver = errors.New("observe: observer is nil")

// ErrMissingStage is returned when a StageMeta has no stage name.
var ErrMissingStage = errors.New("observe: stage name is required")
