// Package otlp converts OpenTelemetry Protocol export requests into the
// canonical internal records, with partial-success accounting for records
// that fail schema validation.
package otlp

import (
	"fmt"
	"strings"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Supported OTLP content types.
const (
	ContentTypeProtobuf = "application/x-protobuf"
	ContentTypeJSON     = "application/json"
)

// DecodeError means the request body could not be decoded at all; the whole
// request is rejected (HTTP 400 / gRPC INVALID_ARGUMENT).
type DecodeError struct {
	ContentType string
	Cause       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode OTLP %s payload: %v", e.ContentType, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// SupportedContentType reports whether the content type is one of the two
// OTLP encodings.
func SupportedContentType(contentType string) bool {
	return strings.Contains(contentType, ContentTypeProtobuf) ||
		strings.Contains(contentType, ContentTypeJSON)
}

func unmarshal(body []byte, contentType string, msg proto.Message) error {
	if strings.Contains(contentType, ContentTypeProtobuf) {
		if err := proto.Unmarshal(body, msg); err != nil {
			return &DecodeError{ContentType: ContentTypeProtobuf, Cause: err}
		}
		return nil
	}
	if err := protojson.Unmarshal(body, msg); err != nil {
		return &DecodeError{ContentType: ContentTypeJSON, Cause: err}
	}
	return nil
}

// DecodeLogs decodes an ExportLogsServiceRequest from protobuf or canonical
// OTLP JSON, selected by content type.
func DecodeLogs(body []byte, contentType string) (*collogspb.ExportLogsServiceRequest, error) {
	var req collogspb.ExportLogsServiceRequest
	if err := unmarshal(body, contentType, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeMetrics decodes an ExportMetricsServiceRequest.
func DecodeMetrics(body []byte, contentType string) (*colmetricspb.ExportMetricsServiceRequest, error) {
	var req colmetricspb.ExportMetricsServiceRequest
	if err := unmarshal(body, contentType, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeTraces decodes an ExportTraceServiceRequest.
func DecodeTraces(body []byte, contentType string) (*coltracepb.ExportTraceServiceRequest, error) {
	var req coltracepb.ExportTraceServiceRequest
	if err := unmarshal(body, contentType, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
