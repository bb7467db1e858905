package querylang

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
)

func TestParseBasicSelect(t *testing.T) {
	sel, err := Parse("SELECT * FROM logs")
	require.Nil(t, err)
	assert.Equal(t, "logs", sel.From)
	assert.Nil(t, sel.Where)
	assert.Nil(t, sel.Limit)
}

func TestParseFullSelect(t *testing.T) {
	sel, err := Parse("SELECT * FROM logs WHERE level = 'info' AND service = 'api' ORDER BY timestamp DESC LIMIT 10 OFFSET 5")
	require.Nil(t, err)

	assert.Equal(t, "logs", sel.From)
	require.NotNil(t, sel.Where)
	assert.True(t, sel.HasOrder)
	assert.Equal(t, "timestamp", sel.OrderBy)
	assert.Equal(t, query.SortDesc, sel.OrderDir)
	require.NotNil(t, sel.Limit)
	assert.Equal(t, uint64(10), *sel.Limit)
	require.NotNil(t, sel.Offset)
	assert.Equal(t, uint64(5), *sel.Offset)

	and, ok := sel.Where.(*query.And)
	require.True(t, ok)
	left, ok := and.Left.(*query.Comparison)
	require.True(t, ok)
	assert.Equal(t, "level", left.Column)
	assert.Equal(t, query.OpEq, left.Op)
	assert.Equal(t, "info", left.Value.Str)
}

func TestParseCaseInsensitiveKeywords(t *testing.T) {
	sel, err := Parse("select * from LOGS where LEVEL = 'info' order by TIMESTAMP asc limit 3")
	require.Nil(t, err)
	assert.Equal(t, "logs", sel.From)
	assert.Equal(t, "timestamp", sel.OrderBy)
	assert.Equal(t, query.SortAsc, sel.OrderDir)
}

func TestParseOperators(t *testing.T) {
	testCases := []struct {
		input string
		op    query.Op
	}{
		{"SELECT * FROM logs WHERE message CONTAINS 'x'", query.OpContains},
		{"SELECT * FROM logs WHERE message STARTS WITH 'x'", query.OpStartsWith},
		{"SELECT * FROM logs WHERE message ENDS WITH 'x'", query.OpEndsWith},
		{"SELECT * FROM metrics WHERE value != 3", query.OpNeq},
		{"SELECT * FROM metrics WHERE value <= 3.5", query.OpLte},
		{"SELECT * FROM metrics WHERE value >= 3", query.OpGte},
	}
	for _, tc := range testCases {
		sel, err := Parse(tc.input)
		require.Nil(t, err, tc.input)
		cmp, ok := sel.Where.(*query.Comparison)
		require.True(t, ok, tc.input)
		assert.Equal(t, tc.op, cmp.Op, tc.input)
	}
}

func TestParseNotAndParens(t *testing.T) {
	sel, err := Parse("SELECT * FROM logs WHERE NOT (level = 'debug' OR level = 'trace') AND service = 'api'")
	require.Nil(t, err)

	and, ok := sel.Where.(*query.And)
	require.True(t, ok)
	_, ok = and.Left.(*query.Not)
	assert.True(t, ok)
}

func TestParseStringEscaping(t *testing.T) {
	sel, err := Parse("SELECT * FROM logs WHERE message = 'it''s fine'")
	require.Nil(t, err)
	cmp := sel.Where.(*query.Comparison)
	assert.Equal(t, "it's fine", cmp.Value.Str)
}

func TestParseErrorPositions(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"missing from", "SELECT *"},
		{"bad projection", "SELECT message FROM logs"},
		{"dangling operator", "SELECT * FROM logs WHERE level ="},
		{"unterminated string", "SELECT * FROM logs WHERE level = 'info"},
		{"trailing garbage", "SELECT * FROM logs LIMIT 5 nonsense"},
		{"negative limit", "SELECT * FROM logs LIMIT -5"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.NotNil(t, err)
			assert.GreaterOrEqual(t, err.Line, 1)
			assert.GreaterOrEqual(t, err.Column, 1)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	// parse(format(parse(q))) must equal parse(q).
	queries := []string{
		"SELECT * FROM logs",
		"SELECT * FROM logs WHERE level = 'info'",
		"SELECT * FROM logs WHERE level = 'info' AND service = 'api' LIMIT 10",
		"SELECT * FROM logs WHERE NOT (level = 'debug') OR message CONTAINS 'oops'",
		"SELECT * FROM metrics WHERE value >= 1.5 ORDER BY timestamp DESC LIMIT 100 OFFSET 10",
		"SELECT * FROM spans WHERE duration_ns > 1000000 AND status_code = 'ERROR'",
		"SELECT * FROM logs WHERE trace_id != NULL",
		"SELECT * FROM metrics_1hour WHERE avg > 0.5 ORDER BY bucket ASC",
	}

	for _, q := range queries {
		first, err := Parse(q)
		require.Nil(t, err, q)

		second, err := Parse(Format(first))
		require.Nil(t, err, "formatted query must reparse: %s -> %s", q, Format(first))

		assert.True(t, reflect.DeepEqual(first, second), "AST round-trip mismatch for %q", q)
	}
}

func TestValidateColumns(t *testing.T) {
	sel, perr := Parse("SELECT * FROM logs WHERE level = 'info'")
	require.Nil(t, perr)
	assert.NoError(t, ValidateColumns(sel))

	sel, perr = Parse("SELECT * FROM logs WHERE nosuch = 'x'")
	require.Nil(t, perr)
	assert.Error(t, ValidateColumns(sel))

	sel, perr = Parse("SELECT * FROM secrets WHERE level = 'x'")
	require.Nil(t, perr)
	assert.Error(t, ValidateColumns(sel))

	sel, perr = Parse("SELECT * FROM logs ORDER BY nosuch")
	require.Nil(t, perr)
	assert.Error(t, ValidateColumns(sel))
}

func TestResolveTable(t *testing.T) {
	physical, signal, err := ResolveTable("traces")
	require.NoError(t, err)
	assert.Equal(t, "spans", physical)
	assert.Equal(t, SignalTraces, signal)

	_, _, err = ResolveTable("system_tables")
	assert.Error(t, err)
}

func rowsFixture() []map[string]any {
	return []map[string]any{
		{"timestamp": int64(100), "level": "info", "message": "Server started", "service": "api"},
		{"timestamp": int64(200), "level": "error", "message": "boom happened", "service": "api"},
		{"timestamp": int64(300), "level": "info", "message": "worker idle", "service": "worker"},
	}
}

func mustParse(t *testing.T, q string) *query.Select {
	t.Helper()
	sel, err := Parse(q)
	require.Nil(t, err)
	return sel
}

func TestExecuteRowsFilter(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE level = 'info' AND service = 'api'")
	result := ExecuteRows(sel, rowsFixture())

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Server started", result.Rows[0]["message"])
	assert.Equal(t, uint64(1), result.TotalMatched)
}

func TestExecuteRowsContainsCaseInsensitive(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE message CONTAINS 'SERVER'")
	result := ExecuteRows(sel, rowsFixture())
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Server started", result.Rows[0]["message"])
}

func TestExecuteRowsPrefixSuffixCaseSensitive(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE message STARTS WITH 'server'")
	result := ExecuteRows(sel, rowsFixture())
	assert.Empty(t, result.Rows)

	sel = mustParse(t, "SELECT * FROM logs WHERE message ENDS WITH 'idle'")
	result = ExecuteRows(sel, rowsFixture())
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "worker idle", result.Rows[0]["message"])
}

func TestExecuteRowsNumericComparison(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE timestamp > 150")
	result := ExecuteRows(sel, rowsFixture())
	assert.Len(t, result.Rows, 2)
}

func TestExecuteRowsMixedTypesCompareFalse(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE message > 5")
	result := ExecuteRows(sel, rowsFixture())
	assert.Empty(t, result.Rows)
}

func TestExecuteRowsNullEquality(t *testing.T) {
	rows := []map[string]any{
		{"trace_id": "abc", "message": "linked"},
		{"trace_id": nil, "message": "bare"},
		{"message": "missing"},
	}

	sel := mustParse(t, "SELECT * FROM logs WHERE trace_id = NULL")
	result := ExecuteRows(sel, rows)
	assert.Len(t, result.Rows, 2)

	sel = mustParse(t, "SELECT * FROM logs WHERE trace_id != NULL")
	result = ExecuteRows(sel, rows)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "linked", result.Rows[0]["message"])
}

func TestExecuteRowsOrderLimitOffset(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs ORDER BY timestamp DESC LIMIT 2")
	result := ExecuteRows(sel, rowsFixture())

	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(300), result.Rows[0]["timestamp"])
	assert.Equal(t, int64(200), result.Rows[1]["timestamp"])
	assert.Equal(t, uint64(3), result.TotalMatched)

	sel = mustParse(t, "SELECT * FROM logs ORDER BY timestamp ASC LIMIT 2 OFFSET 2")
	result = ExecuteRows(sel, rowsFixture())
	require.Len(t, result.Rows, 1)
	assert.Equal(t, int64(300), result.Rows[0]["timestamp"])
}

func TestExecuteRowsHardCeiling(t *testing.T) {
	rows := make([]map[string]any, 12000)
	for i := range rows {
		rows[i] = map[string]any{"timestamp": int64(i)}
	}

	sel := mustParse(t, "SELECT * FROM logs")
	result := ExecuteRows(sel, rows)

	assert.Len(t, result.Rows, int(query.MaxLimit))
	assert.Equal(t, uint64(12000), result.TotalMatched)

	// An explicit LIMIT above the ceiling is clamped too
	sel = mustParse(t, "SELECT * FROM logs LIMIT 999999")
	result = ExecuteRows(sel, rows)
	assert.Len(t, result.Rows, int(query.MaxLimit))
}

func TestBuildSQL(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE level = 'info' AND message CONTAINS 'boot' ORDER BY timestamp DESC LIMIT 10 OFFSET 5")
	require.NoError(t, ValidateColumns(sel))

	stmt, args, err := BuildSQL(sel)
	require.NoError(t, err)

	assert.Contains(t, stmt, "SELECT * FROM logs WHERE")
	assert.Contains(t, stmt, "level = ?")
	assert.Contains(t, stmt, "positionCaseInsensitive(message, ?) > 0")
	assert.Contains(t, stmt, "ORDER BY timestamp DESC")
	assert.Contains(t, stmt, "LIMIT 10 OFFSET 5")
	assert.Equal(t, []any{"info", "boot"}, args)
}

func TestBuildSQLAppliesCeilingWithoutLimit(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM metrics")
	stmt, _, err := BuildSQL(sel)
	require.NoError(t, err)
	assert.Contains(t, stmt, "LIMIT 10000")
}

func TestBuildSQLTracesAlias(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM traces WHERE duration_ns > 1000")
	stmt, args, err := BuildSQL(sel)
	require.NoError(t, err)
	assert.Contains(t, stmt, "FROM spans")
	assert.Equal(t, []any{float64(1000)}, args)
}

func TestBuildCountSQL(t *testing.T) {
	sel := mustParse(t, "SELECT * FROM logs WHERE service = 'api' LIMIT 5")
	stmt, args, err := BuildCountSQL(sel)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count() FROM logs WHERE service = ?", stmt)
	assert.Equal(t, []any{"api"}, args)
	assert.NotContains(t, stmt, "LIMIT")
}
