package querylang

import (
	"fmt"
	"strings"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
)

// BuildSQL serializes a validated Select into a parameterized ClickHouse
// query plus its arguments. The caller must have run ValidateColumns first;
// identifiers reaching this point come from the catalog allow-list, never
// from user input verbatim.
func BuildSQL(sel *query.Select) (string, []any, error) {
	physical, _, err := ResolveTable(sel.From)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(physical)

	if sel.Where != nil {
		sb.WriteString(" WHERE ")
		if err := buildExpr(&sb, &args, sel.Where); err != nil {
			return "", nil, err
		}
	}

	if sel.HasOrder {
		fmt.Fprintf(&sb, " ORDER BY %s %s", sel.OrderBy, sel.OrderDir)
	}

	fmt.Fprintf(&sb, " LIMIT %d", sel.EffectiveLimit())
	if offset := sel.EffectiveOffset(); offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}

	return sb.String(), args, nil
}

// BuildCountSQL builds the companion total-match count query, ignoring
// LIMIT/OFFSET.
func BuildCountSQL(sel *query.Select) (string, []any, error) {
	physical, _, err := ResolveTable(sel.From)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT count() FROM ")
	sb.WriteString(physical)

	if sel.Where != nil {
		sb.WriteString(" WHERE ")
		if err := buildExpr(&sb, &args, sel.Where); err != nil {
			return "", nil, err
		}
	}

	return sb.String(), args, nil
}

func buildExpr(sb *strings.Builder, args *[]any, expr query.Expr) error {
	switch e := expr.(type) {
	case *query.And:
		sb.WriteString("(")
		if err := buildExpr(sb, args, e.Left); err != nil {
			return err
		}
		sb.WriteString(" AND ")
		if err := buildExpr(sb, args, e.Right); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	case *query.Or:
		sb.WriteString("(")
		if err := buildExpr(sb, args, e.Left); err != nil {
			return err
		}
		sb.WriteString(" OR ")
		if err := buildExpr(sb, args, e.Right); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	case *query.Not:
		sb.WriteString("NOT (")
		if err := buildExpr(sb, args, e.Expr); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	case *query.Comparison:
		return buildComparison(sb, args, e)
	default:
		return fmt.Errorf("unsupported expression node %T", expr)
	}
}

func buildComparison(sb *strings.Builder, args *[]any, cmp *query.Comparison) error {
	if cmp.Value.Kind == query.LiteralNull {
		switch cmp.Op {
		case query.OpEq:
			fmt.Fprintf(sb, "%s IS NULL", cmp.Column)
			return nil
		case query.OpNeq:
			fmt.Fprintf(sb, "%s IS NOT NULL", cmp.Column)
			return nil
		default:
			return fmt.Errorf("operator %s is not valid against NULL", cmp.Op)
		}
	}

	var val any
	if cmp.Value.Kind == query.LiteralNumber {
		val = cmp.Value.Num
	} else {
		val = cmp.Value.Str
	}

	switch cmp.Op {
	case query.OpContains:
		// Case-insensitive, matching the native executor.
		fmt.Fprintf(sb, "positionCaseInsensitive(%s, ?) > 0", cmp.Column)
	case query.OpStartsWith:
		fmt.Fprintf(sb, "startsWith(%s, ?)", cmp.Column)
	case query.OpEndsWith:
		fmt.Fprintf(sb, "endsWith(%s, ?)", cmp.Column)
	case query.OpEq, query.OpNeq, query.OpLt, query.OpLte, query.OpGt, query.OpGte:
		fmt.Fprintf(sb, "%s %s ?", cmp.Column, cmp.Op)
	default:
		return fmt.Errorf("unsupported operator %s", cmp.Op)
	}
	*args = append(*args, val)
	return nil
}
