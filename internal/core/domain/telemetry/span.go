package telemetry

import "sort"

// SpanKind mirrors the OTLP span kind enum.
type SpanKind string

const (
	SpanKindInternal SpanKind = "INTERNAL"
	SpanKindServer   SpanKind = "SERVER"
	SpanKindClient   SpanKind = "CLIENT"
	SpanKindProducer SpanKind = "PRODUCER"
	SpanKindConsumer SpanKind = "CONSUMER"
)

// StatusCode mirrors the OTLP span status code enum.
type StatusCode string

const (
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
	StatusUnset StatusCode = "UNSET"
)

// SpanEvent is a timed annotation on a span. Order is preserved from ingest.
type SpanEvent struct {
	Timestamp  int64             `json:"timestamp"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SpanLink references another span, possibly in another trace.
type SpanLink struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Span is the canonical internal span. ParentSpanID is empty for roots.
type Span struct {
	TraceID            string            `json:"trace_id"`
	SpanID             string            `json:"span_id"`
	ParentSpanID       string            `json:"parent_span_id,omitempty"`
	StartTime          int64             `json:"start_time"`
	EndTime            int64             `json:"end_time"`
	DurationNs         int64             `json:"duration_ns"`
	Name               string            `json:"name"`
	Operation          string            `json:"operation"`
	Service            string            `json:"service"`
	SpanKind           SpanKind          `json:"span_kind"`
	StatusCode         StatusCode        `json:"status_code"`
	StatusMessage      string            `json:"status_message,omitempty"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	ResourceAttributes map[string]string `json:"resource_attributes,omitempty"`
	Events             []SpanEvent       `json:"events,omitempty"`
	Links              []SpanLink        `json:"links,omitempty"`
}

// Validate enforces the span schema, including end >= start. It also derives
// DurationNs so the invariant duration_ns = end_time - start_time holds for
// every accepted span regardless of what the producer sent.
func (s *Span) Validate() error {
	if s.TraceID == "" {
		return ErrEmptyTraceID
	}
	if s.SpanID == "" {
		return ErrEmptySpanID
	}
	if s.Service == "" {
		return ErrEmptyService
	}
	if s.EndTime < s.StartTime {
		return ErrNegativeDuration
	}
	s.DurationNs = s.EndTime - s.StartTime
	if s.SpanKind == "" {
		s.SpanKind = SpanKindInternal
	}
	if s.StatusCode == "" {
		s.StatusCode = StatusUnset
	}
	return nil
}

// Trace is the derived view over spans sharing a trace ID, ordered by start
// time. Spans with a missing parent are orphan roots, not errors.
type Trace struct {
	TraceID   string  `json:"trace_id"`
	Spans     []*Span `json:"spans"`
	SpanCount int     `json:"span_count"`
	StartTime int64   `json:"start_time"`
	EndTime   int64   `json:"end_time"`
}

// NewTrace assembles a Trace from spans already known to share a trace ID.
func NewTrace(traceID string, spans []*Span) *Trace {
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].StartTime < spans[j].StartTime
	})
	t := &Trace{TraceID: traceID, Spans: spans, SpanCount: len(spans)}
	for i, s := range spans {
		if i == 0 || s.StartTime < t.StartTime {
			t.StartTime = s.StartTime
		}
		if s.EndTime > t.EndTime {
			t.EndTime = s.EndTime
		}
	}
	return t
}

// GroupTraces partitions spans by trace ID into ordered Trace views, sorted
// most-recent first.
func GroupTraces(spans []*Span) []*Trace {
	byID := make(map[string][]*Span)
	for _, s := range spans {
		byID[s.TraceID] = append(byID[s.TraceID], s)
	}
	traces := make([]*Trace, 0, len(byID))
	for id, group := range byID {
		traces = append(traces, NewTrace(id, group))
	}
	sort.Slice(traces, func(i, j int) bool {
		return traces[i].StartTime > traces[j].StartTime
	})
	return traces
}

// TraceFilter selects spans for the REST query path; results are grouped
// into traces by the handler.
type TraceFilter struct {
	Service       string
	MinDurationNs *int64
	MaxDurationNs *int64
	Status        string
	StartTime     *int64
	EndTime       *int64
	Limit         int
	Offset        int
}
