package otlp

import (
	"github.com/sirupsen/logrus"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// TracesConverter converts OTLP spans into canonical spans, preserving
// event and link order.
type TracesConverter struct {
	logger *logrus.Logger
}

// NewTracesConverter creates a new OTLP traces converter.
func NewTracesConverter(logger *logrus.Logger) *TracesConverter {
	return &TracesConverter{logger: logger}
}

// Convert converts an export request into canonical spans. Spans failing
// schema validation (end before start, missing IDs) are dropped and counted.
func (c *TracesConverter) Convert(req *coltracepb.ExportTraceServiceRequest) ([]*telemetry.Span, uint64) {
	var spans []*telemetry.Span
	var rejected uint64

	for _, resourceSpans := range req.GetResourceSpans() {
		resourceAttrs := resourceAttributes(resourceSpans.GetResource())
		service := serviceName(resourceAttrs)

		for _, scopeSpans := range resourceSpans.GetScopeSpans() {
			for _, span := range scopeSpans.GetSpans() {
				converted := c.convertSpan(span, resourceAttrs, service)
				if err := converted.Validate(); err != nil {
					rejected++
					c.logger.WithError(err).WithField("service", service).
						Debug("Dropping OTLP span failing validation")
					continue
				}
				spans = append(spans, converted)
			}
		}
	}

	return spans, rejected
}

func (c *TracesConverter) convertSpan(
	span *tracepb.Span,
	resourceAttrs map[string]string,
	service string,
) *telemetry.Span {
	events := make([]telemetry.SpanEvent, 0, len(span.GetEvents()))
	for _, e := range span.GetEvents() {
		events = append(events, telemetry.SpanEvent{
			Timestamp:  int64(e.GetTimeUnixNano()),
			Name:       e.GetName(),
			Attributes: keyValuesToMap(e.GetAttributes()),
		})
	}

	links := make([]telemetry.SpanLink, 0, len(span.GetLinks()))
	for _, l := range span.GetLinks() {
		links = append(links, telemetry.SpanLink{
			TraceID:    encodeID(l.GetTraceId()),
			SpanID:     encodeID(l.GetSpanId()),
			Attributes: keyValuesToMap(l.GetAttributes()),
		})
	}

	name := span.GetName()

	return &telemetry.Span{
		TraceID:            encodeID(span.GetTraceId()),
		SpanID:             encodeID(span.GetSpanId()),
		ParentSpanID:       encodeID(span.GetParentSpanId()),
		StartTime:          int64(span.GetStartTimeUnixNano()),
		EndTime:            int64(span.GetEndTimeUnixNano()),
		Name:               name,
		Operation:          name,
		Service:            service,
		SpanKind:           convertSpanKind(span.GetKind()),
		StatusCode:         convertStatusCode(span.GetStatus().GetCode()),
		StatusMessage:      span.GetStatus().GetMessage(),
		Attributes:         keyValuesToMap(span.GetAttributes()),
		ResourceAttributes: resourceAttrs,
		Events:             events,
		Links:              links,
	}
}

// convertSpanKind maps the OTLP span kind enum; unknown values fall back to
// INTERNAL.
func convertSpanKind(kind tracepb.Span_SpanKind) telemetry.SpanKind {
	switch kind {
	case tracepb.Span_SPAN_KIND_SERVER:
		return telemetry.SpanKindServer
	case tracepb.Span_SPAN_KIND_CLIENT:
		return telemetry.SpanKindClient
	case tracepb.Span_SPAN_KIND_PRODUCER:
		return telemetry.SpanKindProducer
	case tracepb.Span_SPAN_KIND_CONSUMER:
		return telemetry.SpanKindConsumer
	default:
		return telemetry.SpanKindInternal
	}
}

// convertStatusCode maps the OTLP status code enum; unknown values fall back
// to UNSET.
func convertStatusCode(code tracepb.Status_StatusCode) telemetry.StatusCode {
	switch code {
	case tracepb.Status_STATUS_CODE_OK:
		return telemetry.StatusOK
	case tracepb.Status_STATUS_CODE_ERROR:
		return telemetry.StatusError
	default:
		return telemetry.StatusUnset
	}
}
