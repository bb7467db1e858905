package querylang

import (
	"fmt"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/domain/retention"
)

// Signal identifies which store owns a table.
type Signal int

const (
	SignalLogs Signal = iota
	SignalMetrics
	SignalTraces
)

// tableInfo is the allow-list entry for one queryable table.
type tableInfo struct {
	physical string
	signal   Signal
	columns  map[string]bool
}

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// catalog is the identifier allow-list: FROM is restricted to these tables
// and WHERE/ORDER BY columns to each table's schema. "traces" is an alias
// for the spans table.
var catalog = map[string]tableInfo{
	"logs": {physical: "logs", signal: SignalLogs, columns: cols(
		"timestamp", "level", "message", "service", "trace_id", "span_id", "normalized_message")},
	"metrics": {physical: "metrics", signal: SignalMetrics, columns: cols(
		"timestamp", "name", "metric_type", "value", "service")},
	"traces": {physical: "spans", signal: SignalTraces, columns: spanColumns()},
	"spans":  {physical: "spans", signal: SignalTraces, columns: spanColumns()},
}

func spanColumns() map[string]bool {
	return cols("trace_id", "span_id", "parent_span_id", "start_time", "end_time",
		"duration_ns", "name", "operation", "service", "span_kind", "status_code", "status_message")
}

func init() {
	metricAggCols := cols("bucket", "service", "name", "metric_type", "labels_hash",
		"count", "sum", "min", "max", "avg")
	logAggCols := cols("bucket", "service", "level", "normalized_message", "sample_message", "count")
	spanAggCols := cols("bucket", "service", "operation", "span_kind", "status_code",
		"span_count", "avg_duration_ns", "min_duration_ns", "max_duration_ns", "p50", "p95", "p99")

	for _, tier := range retention.Tiers {
		info := tableInfo{physical: tier.TargetTable}
		switch tier.SourceTable {
		case "metrics":
			info.signal = SignalMetrics
			info.columns = metricAggCols
		case "logs":
			info.signal = SignalLogs
			info.columns = logAggCols
		case "spans":
			info.signal = SignalTraces
			info.columns = spanAggCols
		}
		catalog[tier.TargetTable] = info
	}
}

// ResolveTable validates the FROM table against the catalog and returns the
// physical table name and owning signal.
func ResolveTable(from string) (string, Signal, error) {
	info, ok := catalog[from]
	if !ok {
		return "", 0, fmt.Errorf("unknown table %q", from)
	}
	return info.physical, info.signal, nil
}

// ValidateColumns walks the WHERE tree and ORDER BY column against the
// table's schema.
func ValidateColumns(sel *query.Select) error {
	info, ok := catalog[sel.From]
	if !ok {
		return fmt.Errorf("unknown table %q", sel.From)
	}
	if sel.HasOrder && !info.columns[sel.OrderBy] {
		return fmt.Errorf("unknown column %q in ORDER BY for table %q", sel.OrderBy, sel.From)
	}
	return validateExprColumns(sel.Where, info)
}

func validateExprColumns(expr query.Expr, info tableInfo) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case *query.And:
		if err := validateExprColumns(e.Left, info); err != nil {
			return err
		}
		return validateExprColumns(e.Right, info)
	case *query.Or:
		if err := validateExprColumns(e.Left, info); err != nil {
			return err
		}
		return validateExprColumns(e.Right, info)
	case *query.Not:
		return validateExprColumns(e.Expr, info)
	case *query.Comparison:
		if !info.columns[e.Column] {
			return fmt.Errorf("unknown column %q for table %q", e.Column, info.physical)
		}
		return nil
	default:
		return fmt.Errorf("unsupported expression node %T", expr)
	}
}
