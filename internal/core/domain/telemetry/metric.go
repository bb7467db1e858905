package telemetry

// MetricType classifies a metric sample.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the canonical internal metric sample. For histograms Value holds
// the scalar sum with BucketBounds/BucketCounts carrying the distribution.
type Metric struct {
	Timestamp    int64             `json:"timestamp"`
	Name         string            `json:"name"`
	MetricType   MetricType        `json:"metric_type"`
	Value        float64           `json:"value"`
	BucketBounds []float64         `json:"bucket_bounds,omitempty"`
	BucketCounts []uint64          `json:"bucket_counts,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	Service      string            `json:"service"`
}

// Validate enforces the metric schema, including the histogram arity
// invariant |bucket_bounds| + 1 = |bucket_counts| (or both empty).
func (m *Metric) Validate() error {
	if m.Name == "" {
		return ErrEmptyMetricName
	}
	switch m.MetricType {
	case MetricTypeCounter, MetricTypeGauge:
		if len(m.BucketBounds) != 0 || len(m.BucketCounts) != 0 {
			return ErrUnexpectedBuckets
		}
	case MetricTypeHistogram:
		if len(m.BucketBounds) == 0 && len(m.BucketCounts) == 0 {
			return nil
		}
		if len(m.BucketBounds)+1 != len(m.BucketCounts) {
			return ErrHistogramBuckets
		}
	default:
		return ErrInvalidMetricType
	}
	return nil
}

// MetricFilter selects metric samples for the REST query path.
type MetricFilter struct {
	Name      string
	Type      string
	Labels    map[string]string
	StartTime *int64
	EndTime   *int64
	Limit     int
	Offset    int
}
