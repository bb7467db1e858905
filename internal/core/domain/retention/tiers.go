package retention

// Bucket is an aggregation bucket width.
type Bucket string

const (
	Bucket1Min  Bucket = "1min"
	Bucket5Min  Bucket = "5min"
	Bucket1Hour Bucket = "1hour"
	Bucket1Day  Bucket = "1day"
)

// AggregationTier describes one materialized-view tier. Tiers form a fixed
// DAG rooted at the raw tables; each tier is populated by a materialized
// view triggered by inserts into its source.
type AggregationTier struct {
	SourceTable  string
	TargetTable  string
	Bucket       Bucket
	TTLDays      int
	Aggregations []string
}

var scalarAggs = []string{"count", "sum", "min", "max", "avg"}
var statAggs = []string{"count", "avg", "min", "max", "p50", "p95", "p99"}

// Tiers is the schema-time aggregation topology. Source-table TTL changes do
// not cascade here; each tier keeps its own TTL unless explicitly altered.
var Tiers = []AggregationTier{
	{SourceTable: "metrics", TargetTable: "metrics_1min", Bucket: Bucket1Min, TTLDays: 30, Aggregations: scalarAggs},
	{SourceTable: "metrics", TargetTable: "metrics_5min", Bucket: Bucket5Min, TTLDays: 90, Aggregations: scalarAggs},
	{SourceTable: "metrics", TargetTable: "metrics_1hour", Bucket: Bucket1Hour, TTLDays: 365, Aggregations: scalarAggs},
	{SourceTable: "metrics", TargetTable: "metrics_1day", Bucket: Bucket1Day, TTLDays: 730, Aggregations: scalarAggs},
	{SourceTable: "logs", TargetTable: "logs_1hour_counts", Bucket: Bucket1Hour, TTLDays: 365, Aggregations: []string{"count"}},
	{SourceTable: "logs", TargetTable: "logs_1day_counts", Bucket: Bucket1Day, TTLDays: 730, Aggregations: []string{"count"}},
	{SourceTable: "spans", TargetTable: "spans_1hour_stats", Bucket: Bucket1Hour, TTLDays: 365, Aggregations: statAggs},
	{SourceTable: "spans", TargetTable: "spans_1day_stats", Bucket: Bucket1Day, TTLDays: 730, Aggregations: statAggs},
	{SourceTable: "spans", TargetTable: "traces_1hour_stats", Bucket: Bucket1Hour, TTLDays: 365, Aggregations: statAggs},
	{SourceTable: "spans", TargetTable: "traces_1day_stats", Bucket: Bucket1Day, TTLDays: 730, Aggregations: statAggs},
}

// TiersFor returns the tiers rooted at the given source table.
func TiersFor(source string) []AggregationTier {
	var out []AggregationTier
	for _, t := range Tiers {
		if t.SourceTable == source {
			out = append(out, t)
		}
	}
	return out
}
