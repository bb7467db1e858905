package otlp

import (
	"github.com/sirupsen/logrus"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"

	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
)

// MetricsConverter expands OTLP metrics into canonical samples, one per
// data point.
type MetricsConverter struct {
	logger *logrus.Logger
}

// NewMetricsConverter creates a new OTLP metrics converter.
func NewMetricsConverter(logger *logrus.Logger) *MetricsConverter {
	return &MetricsConverter{logger: logger}
}

// Convert converts an export request into canonical samples. Exponential
// histogram and summary data points are unsupported and count as rejected,
// as do samples failing schema validation.
func (c *MetricsConverter) Convert(req *colmetricspb.ExportMetricsServiceRequest) ([]*telemetry.Metric, uint64) {
	var metrics []*telemetry.Metric
	var rejected uint64

	for _, resourceMetrics := range req.GetResourceMetrics() {
		resourceAttrs := resourceAttributes(resourceMetrics.GetResource())
		service := serviceName(resourceAttrs)

		for _, scopeMetrics := range resourceMetrics.GetScopeMetrics() {
			for _, metric := range scopeMetrics.GetMetrics() {
				name := metric.GetName()

				switch data := metric.GetData().(type) {
				case *metricspb.Metric_Gauge:
					for _, dp := range data.Gauge.GetDataPoints() {
						metrics, rejected = c.appendNumber(metrics, rejected, name, service, telemetry.MetricTypeGauge, dp)
					}

				case *metricspb.Metric_Sum:
					metricType := telemetry.MetricTypeGauge
					if data.Sum.GetIsMonotonic() {
						metricType = telemetry.MetricTypeCounter
					}
					for _, dp := range data.Sum.GetDataPoints() {
						metrics, rejected = c.appendNumber(metrics, rejected, name, service, metricType, dp)
					}

				case *metricspb.Metric_Histogram:
					for _, dp := range data.Histogram.GetDataPoints() {
						sample := &telemetry.Metric{
							Timestamp:    int64(dp.GetTimeUnixNano()),
							Name:         name,
							MetricType:   telemetry.MetricTypeHistogram,
							Value:        dp.GetSum(),
							BucketBounds: dp.GetExplicitBounds(),
							BucketCounts: dp.GetBucketCounts(),
							Labels:       keyValuesToMap(dp.GetAttributes()),
							Service:      service,
						}
						if err := sample.Validate(); err != nil {
							rejected++
							c.logger.WithError(err).WithField("metric", name).
								Debug("Dropping OTLP histogram data point failing validation")
							continue
						}
						metrics = append(metrics, sample)
					}

				case *metricspb.Metric_ExponentialHistogram:
					n := uint64(len(data.ExponentialHistogram.GetDataPoints()))
					rejected += n
					c.logger.WithField("metric", name).WithField("data_points", n).
						Debug("Rejecting unsupported exponential histogram")

				case *metricspb.Metric_Summary:
					n := uint64(len(data.Summary.GetDataPoints()))
					rejected += n
					c.logger.WithField("metric", name).WithField("data_points", n).
						Debug("Rejecting unsupported summary")
				}
			}
		}
	}

	return metrics, rejected
}

func (c *MetricsConverter) appendNumber(
	metrics []*telemetry.Metric,
	rejected uint64,
	name, service string,
	metricType telemetry.MetricType,
	dp *metricspb.NumberDataPoint,
) ([]*telemetry.Metric, uint64) {
	var value float64
	switch v := dp.GetValue().(type) {
	case *metricspb.NumberDataPoint_AsDouble:
		value = v.AsDouble
	case *metricspb.NumberDataPoint_AsInt:
		value = float64(v.AsInt)
	}

	sample := &telemetry.Metric{
		Timestamp:  int64(dp.GetTimeUnixNano()),
		Name:       name,
		MetricType: metricType,
		Value:      value,
		Labels:     keyValuesToMap(dp.GetAttributes()),
		Service:    service,
	}
	if err := sample.Validate(); err != nil {
		c.logger.WithError(err).WithField("metric", name).
			Debug("Dropping OTLP data point failing validation")
		return metrics, rejected + 1
	}
	return append(metrics, sample), rejected
}
