package telemetry

import "strings"

// Level is the canonical log severity.
type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// ParseLevel maps a string to a canonical Level. Unknown values fall back to
// info so ingest never drops a record over a vendor-specific severity label.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info", "information":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error", "err":
		return LevelError
	case "fatal", "critical":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// LevelFromSeverityNumber maps an OTLP severity number (1-24) to a Level
// following the OTLP convention bands.
func LevelFromSeverityNumber(n int32) Level {
	switch {
	case n >= 1 && n <= 4:
		return LevelTrace
	case n >= 5 && n <= 8:
		return LevelDebug
	case n >= 9 && n <= 12:
		return LevelInfo
	case n >= 13 && n <= 16:
		return LevelWarn
	case n >= 17 && n <= 20:
		return LevelError
	case n >= 21 && n <= 24:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// LogRecord is the canonical internal log record. Timestamps are signed
// nanoseconds since the Unix epoch.
type LogRecord struct {
	Timestamp  int64             `json:"timestamp"`
	Level      Level             `json:"level"`
	Message    string            `json:"message"`
	Service    string            `json:"service"`
	TraceID    string            `json:"trace_id,omitempty"`
	SpanID     string            `json:"span_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate enforces the log schema: message and service must be non-empty.
func (l *LogRecord) Validate() error {
	if l.Message == "" {
		return ErrEmptyMessage
	}
	if l.Service == "" {
		return ErrEmptyService
	}
	switch l.Level {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
	case "":
		return ErrInvalidLevel
	default:
		return ErrInvalidLevel
	}
	return nil
}

// LogFilter selects log records for the REST query path.
type LogFilter struct {
	StartTime *int64
	EndTime   *int64
	Level     string
	Service   string
	Contains  string
	Limit     int
	Offset    int
}
