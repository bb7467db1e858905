package querylang

import (
	"fmt"
	"strings"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
)

// Format renders a parsed Select back to query text. Formatting then
// re-parsing yields an equal AST.
func Format(sel *query.Select) string {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(sel.From)

	if sel.Where != nil {
		sb.WriteString(" WHERE ")
		formatExpr(&sb, sel.Where, false)
	}
	if sel.HasOrder {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(sel.OrderBy)
		sb.WriteString(" ")
		sb.WriteString(string(sel.OrderDir))
	}
	if sel.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *sel.Limit)
	}
	if sel.Offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *sel.Offset)
	}
	return sb.String()
}

func formatExpr(sb *strings.Builder, expr query.Expr, parenthesize bool) {
	switch e := expr.(type) {
	case *query.Or:
		if parenthesize {
			sb.WriteString("(")
		}
		formatExpr(sb, e.Left, true)
		sb.WriteString(" OR ")
		formatExpr(sb, e.Right, true)
		if parenthesize {
			sb.WriteString(")")
		}
	case *query.And:
		if parenthesize {
			sb.WriteString("(")
		}
		formatExpr(sb, e.Left, true)
		sb.WriteString(" AND ")
		formatExpr(sb, e.Right, true)
		if parenthesize {
			sb.WriteString(")")
		}
	case *query.Not:
		sb.WriteString("NOT (")
		formatExpr(sb, e.Expr, false)
		sb.WriteString(")")
	case *query.Comparison:
		sb.WriteString(e.Column)
		sb.WriteString(" ")
		sb.WriteString(string(e.Op))
		sb.WriteString(" ")
		sb.WriteString(formatLiteral(e.Value))
	}
}

func formatLiteral(lit query.Literal) string {
	switch lit.Kind {
	case query.LiteralString:
		return "'" + strings.ReplaceAll(lit.Str, "'", "''") + "'"
	case query.LiteralNumber:
		return lit.Raw
	default:
		return "NULL"
	}
}
