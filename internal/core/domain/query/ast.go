// Package query defines the AST for the SQL-like query language. Parsing
// lives in the query service; evaluation lives with each storage backend.
package query

import "fmt"

// Op is a comparison operator.
type Op string

const (
	OpEq         Op = "="
	OpNeq        Op = "!="
	OpLt         Op = "<"
	OpLte        Op = "<="
	OpGt         Op = ">"
	OpGte        Op = ">="
	OpContains   Op = "CONTAINS"
	OpStartsWith Op = "STARTS WITH"
	OpEndsWith   Op = "ENDS WITH"
)

// SortDir is an ORDER BY direction.
type SortDir string

const (
	SortAsc  SortDir = "ASC"
	SortDesc SortDir = "DESC"
)

// Expr is a node in the WHERE tree: And, Or, Not or Comparison.
type Expr interface {
	exprNode()
}

// And evaluates to true when both operands do.
type And struct {
	Left, Right Expr
}

// Or evaluates to true when either operand does.
type Or struct {
	Left, Right Expr
}

// Not negates its operand.
type Not struct {
	Expr Expr
}

// Comparison compares a column against a literal.
type Comparison struct {
	Column string
	Op     Op
	Value  Literal
}

func (*And) exprNode()        {}
func (*Or) exprNode()         {}
func (*Not) exprNode()        {}
func (*Comparison) exprNode() {}

// LiteralKind discriminates literal values.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralNull
)

// Literal is a string, number or NULL literal.
type Literal struct {
	Kind   LiteralKind
	Str    string
	Num    float64
	Raw    string // literal text as parsed (unquoted for strings); numbers are formatted from it
}

// Select is a parsed single-statement query.
type Select struct {
	From      string
	Where     Expr    `json:",omitempty"`
	OrderBy   string  `json:",omitempty"`
	OrderDir  SortDir `json:",omitempty"`
	HasOrder  bool
	Limit     *uint64 `json:",omitempty"`
	Offset    *uint64 `json:",omitempty"`
}

// MaxLimit is the hard ceiling applied when a query carries no explicit
// LIMIT; the executor never emits unbounded result sets.
const MaxLimit uint64 = 10000

// EffectiveLimit returns the query's LIMIT clamped to MaxLimit.
func (s *Select) EffectiveLimit() uint64 {
	if s.Limit == nil || *s.Limit > MaxLimit {
		return MaxLimit
	}
	return *s.Limit
}

// EffectiveOffset returns the query's OFFSET or zero.
func (s *Select) EffectiveOffset() uint64 {
	if s.Offset == nil {
		return 0
	}
	return *s.Offset
}

// Result is the outcome of executing a Select.
type Result struct {
	Rows         []map[string]any `json:"rows"`
	TotalMatched uint64           `json:"total_matched"`
}

// ParseError carries the position of a syntax error for the 400 response.
type ParseError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d column %d: %s", e.Line, e.Column, e.Message)
}
