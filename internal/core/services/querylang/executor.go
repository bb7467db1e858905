package querylang

import (
	"sort"
	"strings"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
)

// ExecuteRows evaluates a Select against in-memory rows: filter, order,
// then paginate with the hard result ceiling applied. TotalMatched counts
// matches before pagination.
func ExecuteRows(sel *query.Select, rows []map[string]any) *query.Result {
	matched := make([]map[string]any, 0)
	for _, row := range rows {
		if sel.Where == nil || evalExpr(sel.Where, row) {
			matched = append(matched, row)
		}
	}

	if sel.HasOrder {
		col, desc := sel.OrderBy, sel.OrderDir == query.SortDesc
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessValues(matched[i][col], matched[j][col])
			if desc {
				return lessValues(matched[j][col], matched[i][col])
			}
			return less
		})
	}

	total := uint64(len(matched))
	offset := sel.EffectiveOffset()
	limit := sel.EffectiveLimit()

	if offset >= total {
		return &query.Result{Rows: []map[string]any{}, TotalMatched: total}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return &query.Result{Rows: matched[offset:end], TotalMatched: total}
}

// evalExpr evaluates the WHERE tree against one row.
func evalExpr(expr query.Expr, row map[string]any) bool {
	switch e := expr.(type) {
	case *query.And:
		return evalExpr(e.Left, row) && evalExpr(e.Right, row)
	case *query.Or:
		return evalExpr(e.Left, row) || evalExpr(e.Right, row)
	case *query.Not:
		return !evalExpr(e.Expr, row)
	case *query.Comparison:
		return evalComparison(e, row)
	default:
		return false
	}
}

func evalComparison(cmp *query.Comparison, row map[string]any) bool {
	val, present := row[cmp.Column]

	// NULL participates only in equality.
	if cmp.Value.Kind == query.LiteralNull {
		isNull := !present || val == nil
		switch cmp.Op {
		case query.OpEq:
			return isNull
		case query.OpNeq:
			return !isNull
		default:
			return false
		}
	}
	if !present || val == nil {
		return false
	}

	switch cmp.Op {
	case query.OpContains:
		s, ok := val.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(cmp.Value.Str))
	case query.OpStartsWith:
		s, ok := val.(string)
		return ok && strings.HasPrefix(s, cmp.Value.Str)
	case query.OpEndsWith:
		s, ok := val.(string)
		return ok && strings.HasSuffix(s, cmp.Value.Str)
	}

	// Typed comparison: numbers compare numerically, strings
	// lexicographically; mixed types compare false.
	if cmp.Value.Kind == query.LiteralNumber {
		num, ok := toFloat(val)
		if !ok {
			return false
		}
		return compareOrdered(num, cmp.Value.Num, cmp.Op)
	}
	s, ok := val.(string)
	if !ok {
		return false
	}
	return compareOrdered(s, cmp.Value.Str, cmp.Op)
}

func compareOrdered[T float64 | string](a, b T, op query.Op) bool {
	switch op {
	case query.OpEq:
		return a == b
	case query.OpNeq:
		return a != b
	case query.OpLt:
		return a < b
	case query.OpLte:
		return a <= b
	case query.OpGt:
		return a > b
	case query.OpGte:
		return a >= b
	default:
		return false
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// lessValues orders two row values for ORDER BY: numbers before mixed,
// numeric when both are numeric, lexicographic when both are strings.
func lessValues(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	na, aok := toFloat(a)
	nb, bok := toFloat(b)
	if aok && bok {
		return na < nb
	}
	sa, saok := a.(string)
	sb, sbok := b.(string)
	if saok && sbok {
		return sa < sb
	}
	return aok && !bok
}
