package otlp

import (
	"github.com/sirupsen/logrus"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// LogsConverter flattens OTLP resource/scope/log hierarchies into canonical
// log records.
type LogsConverter struct {
	logger *logrus.Logger
}

// NewLogsConverter creates a new OTLP logs converter.
func NewLogsConverter(logger *logrus.Logger) *LogsConverter {
	return &LogsConverter{logger: logger}
}

// Convert converts an export request into canonical records. Records failing
// schema validation are dropped and counted; the batch continues.
func (c *LogsConverter) Convert(req *collogspb.ExportLogsServiceRequest) ([]*telemetry.LogRecord, uint64) {
	var records []*telemetry.LogRecord
	var rejected uint64

	for _, resourceLogs := range req.GetResourceLogs() {
		resourceAttrs := resourceAttributes(resourceLogs.GetResource())
		service := serviceName(resourceAttrs)

		for _, scopeLogs := range resourceLogs.GetScopeLogs() {
			for _, logRecord := range scopeLogs.GetLogRecords() {
				record := c.convertLogRecord(logRecord, resourceAttrs, service)
				if err := record.Validate(); err != nil {
					rejected++
					c.logger.WithError(err).WithField("service", service).
						Debug("Dropping OTLP log record failing validation")
					continue
				}
				records = append(records, record)
			}
		}
	}

	return records, rejected
}

func (c *LogsConverter) convertLogRecord(
	logRecord *logspb.LogRecord,
	resourceAttrs map[string]string,
	service string,
) *telemetry.LogRecord {
	timestamp := int64(logRecord.GetTimeUnixNano())
	if timestamp == 0 {
		timestamp = int64(logRecord.GetObservedTimeUnixNano())
	}

	level := telemetry.LevelFromSeverityNumber(int32(logRecord.GetSeverityNumber()))
	if text := logRecord.GetSeverityText(); text != "" {
		level = telemetry.ParseLevel(text)
	}

	return &telemetry.LogRecord{
		Timestamp:  timestamp,
		Level:      level,
		Message:    anyValueToString(logRecord.GetBody()),
		Service:    service,
		TraceID:    encodeID(logRecord.GetTraceId()),
		SpanID:     encodeID(logRecord.GetSpanId()),
		Attributes: mergeAttributes(resourceAttrs, keyValuesToMap(logRecord.GetAttributes())),
	}
}
