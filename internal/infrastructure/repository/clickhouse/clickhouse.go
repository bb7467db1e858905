// Package clickhouse implements the storage interfaces on the ClickHouse
// column store. Timestamps are stored as signed 64-bit nanosecond integers
// (the driver deserializes high-precision datetime types unreliably) and
// converted with toDateTime(ts/1e9) inside SQL where needed.
package clickhouse

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
)

// alterTTL reissues the table's TTL expression. ClickHouse reclusters lazily;
// the ALTER itself only rewrites metadata.
func alterTTL(ctx context.Context, db driver.Conn, table, tsColumn string, days int) error {
	stmt := fmt.Sprintf(
		"ALTER TABLE %s MODIFY TTL toDateTime(%s / 1000000000) + INTERVAL %d DAY",
		table, tsColumn, days,
	)
	if err := db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("alter ttl on %s: %w", table, err)
	}
	return nil
}

// tableAge fetches count/oldest/newest in one round trip. Oldest and newest
// are nil exactly when the table is empty.
func tableAge(ctx context.Context, db driver.Conn, table, tsColumn string) (uint64, *int64, *int64, error) {
	var count uint64
	var oldest, newest int64
	row := db.QueryRow(ctx, fmt.Sprintf(
		"SELECT count(), min(%s), max(%s) FROM %s", tsColumn, tsColumn, table,
	))
	if err := row.Scan(&count, &oldest, &newest); err != nil {
		return 0, nil, nil, fmt.Errorf("age query on %s: %w", table, err)
	}
	if count == 0 {
		return 0, nil, nil, nil
	}
	return count, &oldest, &newest, nil
}

// querySQL executes a parsed Select in pushdown mode: the AST is serialized
// to parameterized SQL against the allow-listed catalog, rows are scanned
// dynamically, and the companion count query supplies total_matched.
func querySQL(ctx context.Context, db driver.Conn, sel *query.Select) (*query.Result, error) {
	stmt, args, err := querylang.BuildSQL(sel)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("pushdown query: %w", err)
	}
	defer rows.Close()

	result, err := scanDynamic(rows)
	if err != nil {
		return nil, err
	}

	countStmt, countArgs, err := querylang.BuildCountSQL(sel)
	if err != nil {
		return nil, err
	}
	var total uint64
	if err := db.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("pushdown count: %w", err)
	}

	return &query.Result{Rows: result, TotalMatched: total}, nil
}

// scanDynamic scans rows of unknown shape into maps using the driver's
// reported column types.
func scanDynamic(rows driver.Rows) ([]map[string]any, error) {
	columns := rows.Columns()
	types := rows.ColumnTypes()

	out := make([]map[string]any, 0)
	for rows.Next() {
		dest := make([]any, len(columns))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = reflect.ValueOf(dest[i]).Elem().Interface()
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
