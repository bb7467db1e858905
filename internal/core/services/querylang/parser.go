package querylang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Thomblin/heimsight/internal/core/domain/query"
)

type parser struct {
	lex  *lexer
	tok  token
	err  *query.ParseError
}

// Parse parses a single SELECT statement into the query AST. Errors carry
// the line and column of the offending token.
func Parse(input string) (*query.Select, *query.ParseError) {
	p := &parser{lex: newLexer(input)}
	p.next()
	if p.err != nil {
		return nil, p.err
	}

	sel, perr := p.parseSelect()
	if perr != nil {
		return nil, perr
	}
	if p.tok.kind != tokenEOF {
		return nil, p.errorf("unexpected %q after end of statement", p.tok.text)
	}
	return sel, nil
}

func (p *parser) next() {
	tok, err := p.lex.next()
	if err != nil {
		p.err = err
		p.tok = token{kind: tokenEOF, line: err.Line, column: err.Column}
		return
	}
	p.tok = tok
}

func (p *parser) errorf(format string, args ...any) *query.ParseError {
	if p.err != nil {
		return p.err
	}
	return &query.ParseError{
		Line:    p.tok.line,
		Column:  p.tok.column,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *parser) keyword(word string) bool {
	return p.tok.kind == tokenIdent && strings.EqualFold(p.tok.text, word)
}

func (p *parser) expectKeyword(word string) *query.ParseError {
	if !p.keyword(word) {
		return p.errorf("expected %s, got %q", word, p.tok.text)
	}
	p.next()
	return p.err
}

func (p *parser) parseSelect() (*query.Select, *query.ParseError) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if p.tok.kind != tokenStar {
		return nil, p.errorf("only '*' projection is supported, got %q", p.tok.text)
	}
	p.next()
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if p.tok.kind != tokenIdent {
		return nil, p.errorf("expected table name, got %q", p.tok.text)
	}
	sel := &query.Select{From: strings.ToLower(p.tok.text)}
	p.next()

	if p.keyword("WHERE") {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		sel.Where = expr
	}

	if p.keyword("ORDER") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		if p.tok.kind != tokenIdent {
			return nil, p.errorf("expected column after ORDER BY, got %q", p.tok.text)
		}
		sel.OrderBy = strings.ToLower(p.tok.text)
		sel.OrderDir = query.SortAsc
		sel.HasOrder = true
		p.next()
		if p.keyword("ASC") {
			p.next()
		} else if p.keyword("DESC") {
			sel.OrderDir = query.SortDesc
			p.next()
		}
	}

	if p.keyword("LIMIT") {
		p.next()
		n, err := p.parseUint()
		if err != nil {
			return nil, err
		}
		sel.Limit = &n
	}

	if p.keyword("OFFSET") {
		p.next()
		n, err := p.parseUint()
		if err != nil {
			return nil, err
		}
		sel.Offset = &n
	}

	return sel, p.err
}

func (p *parser) parseUint() (uint64, *query.ParseError) {
	if p.tok.kind != tokenNumber {
		return 0, p.errorf("expected unsigned integer, got %q", p.tok.text)
	}
	n, err := strconv.ParseUint(p.tok.text, 10, 64)
	if err != nil {
		return 0, p.errorf("invalid unsigned integer %q", p.tok.text)
	}
	p.next()
	return n, nil
}

func (p *parser) parseOr() (query.Expr, *query.ParseError) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &query.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (query.Expr, *query.ParseError) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &query.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (query.Expr, *query.ParseError) {
	if p.keyword("NOT") {
		p.next()
		inner, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &query.Not{Expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (query.Expr, *query.ParseError) {
	if p.tok.kind == tokenLParen {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokenRParen {
			return nil, p.errorf("expected ')', got %q", p.tok.text)
		}
		p.next()
		return expr, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (query.Expr, *query.ParseError) {
	if p.tok.kind != tokenIdent {
		return nil, p.errorf("expected column name, got %q", p.tok.text)
	}
	column := strings.ToLower(p.tok.text)
	p.next()

	var op query.Op
	switch {
	case p.tok.kind == tokenOp:
		op = query.Op(p.tok.text)
		p.next()
	case p.keyword("CONTAINS"):
		op = query.OpContains
		p.next()
	case p.keyword("STARTS"):
		p.next()
		if err := p.expectKeyword("WITH"); err != nil {
			return nil, err
		}
		op = query.OpStartsWith
	case p.keyword("ENDS"):
		p.next()
		if err := p.expectKeyword("WITH"); err != nil {
			return nil, err
		}
		op = query.OpEndsWith
	default:
		return nil, p.errorf("expected comparison operator, got %q", p.tok.text)
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &query.Comparison{Column: column, Op: op, Value: lit}, nil
}

func (p *parser) parseLiteral() (query.Literal, *query.ParseError) {
	switch {
	case p.tok.kind == tokenString:
		lit := query.Literal{Kind: query.LiteralString, Str: p.tok.text, Raw: p.tok.text}
		p.next()
		return lit, nil
	case p.tok.kind == tokenNumber:
		n, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return query.Literal{}, p.errorf("invalid number %q", p.tok.text)
		}
		lit := query.Literal{Kind: query.LiteralNumber, Num: n, Raw: p.tok.text}
		p.next()
		return lit, nil
	case p.keyword("NULL"):
		p.next()
		return query.Literal{Kind: query.LiteralNull, Raw: "NULL"}, nil
	default:
		return query.Literal{}, p.errorf("expected literal, got %q", p.tok.text)
	}
}
