package observe

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// RequestMeta carries the correlation fields a request-scoped logger
// stamps on every line.
type RequestMeta struct {
	ID       string // request id (required)
	Identity string // rate-limit identity handling the request (optional)
}

// LogLevel orders log severities from debug up to error.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel maps a level name to its LogLevel. Unknown names fall
// back to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Field keys whose values never reach the log. Query and prompt text
// is user content; the rest are credential shapes.
var redactedKeys = map[string]struct{}{
	"query":      {},
	"prompt":     {},
	"password":   {},
	"secret":     {},
	"token":      {},
	"api_key":    {},
	"apiKey":     {},
	"credential": {},
}

// jsonLogger writes one JSON object per line. Deriving a logger with
// WithRequest shares the parent's writer lock, so lines from related
// loggers never interleave.
type jsonLogger struct {
	level LogLevel
	base  map[string]any

	mu *sync.Mutex
	w  io.Writer
}

var _ Logger = (*jsonLogger)(nil)

// NewLogger returns a logger writing JSON lines to stderr at the
// given level.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a logger writing JSON lines to w at the
// given level.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &jsonLogger{
		level: ParseLogLevel(level),
		mu:    &sync.Mutex{},
		w:     w,
	}
}

// WithRequest returns a logger that adds request.id, and
// request.identity when the caller is not anonymous, to every line.
func (l *jsonLogger) WithRequest(meta RequestMeta) Logger {
	base := make(map[string]any, len(l.base)+2)
	for k, v := range l.base {
		base[k] = v
	}
	base["request.id"] = meta.ID
	if meta.Identity != "" {
		base["request.identity"] = meta.Identity
	}

	return &jsonLogger{level: l.level, base: base, mu: l.mu, w: l.w}
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.emit(LevelDebug, msg, fields)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.emit(LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.emit(LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.emit(LevelError, msg, fields)
}

func (l *jsonLogger) emit(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.base)+len(fields)+3)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	for k, v := range l.base {
		entry[k] = v
	}
	for _, f := range fields {
		if _, hidden := redactedKeys[f.Key]; hidden {
			entry[f.Key] = "[REDACTED]"
		} else {
			entry[f.Key] = f.Value
		}
	}

	// Marshal outside the lock; only the write is serialized. Entries
	// that fail to marshal are dropped rather than breaking the line
	// protocol.
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(line)
}
