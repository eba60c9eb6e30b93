// Package parser turns rule text into an ast tree.
//
// Grammar (AND binds tighter than OR, both left-associative):
//
//	expr       := orExpr
//	orExpr     := andExpr (("OR" | "||") andExpr)*
//	andExpr    := comparison (("AND" | "&&") comparison)*
//	comparison := "(" expr ")" | operand comparator operand
//	comparator := "<" | ">" | "<=" | ">=" | "==" | "!=" | "="
//	operand    := identifier | number | string
//
// Keywords are case-insensitive. "=" is read as "==".
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/TimurManjosov/rulesmith/internal/ast"
)

// MaxNesting is the deepest parenthesis nesting accepted.
const MaxNesting = 128

var (
	// ErrEmptyRule is returned for empty or whitespace-only rule text.
	ErrEmptyRule = errors.New("rule is empty")
	// ErrSyntax is wrapped by every SyntaxError.
	ErrSyntax = errors.New("syntax error")
)

// SyntaxError describes malformed rule text. Pos is the byte offset of the
// offending character.
type SyntaxError struct {
	Pos      int
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parse parses rule text. On failure no tree is returned.
func Parse(text string) (*ast.Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyRule
	}
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Expected: "AND, OR or end of input", Found: tok.describe()}
	}
	return root, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures.
func MustParse(text string) *ast.Node {
	n, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("parser.MustParse(%q): %v", text, err))
	}
	return n
}

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (*ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if left, err = ast.NewLogical(ast.OpOr, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseAnd() (*ast.Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if left, err = ast.NewLogical(ast.OpAnd, left, right); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseComparison() (*ast.Node, error) {
	if tok := p.peek(); tok.kind == tokLParen {
		p.next()
		p.depth++
		if p.depth > MaxNesting {
			return nil, &SyntaxError{Pos: tok.pos, Expected: fmt.Sprintf("at most %d nested groups", MaxNesting), Found: tok.describe()}
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: closing.pos, Expected: `")"`, Found: closing.describe()}
		}
		p.depth--
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	opTok := p.next()
	if opTok.kind != tokComparator {
		return nil, &SyntaxError{Pos: opTok.pos, Expected: "comparator", Found: opTok.describe()}
	}
	op, _ := ast.ParseOperator(opTok.text)
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return ast.NewComparison(op, left, right)
}

func (p *parser) parseOperand() (*ast.Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokIdent:
		return ast.NewAttribute(tok.text)
	case tokNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.pos, Expected: "number", Found: tok.describe()}
		}
		return ast.NewLiteral(ast.NumberValue(f))
	case tokString:
		return ast.NewLiteral(ast.StringValue(tok.text))
	}
	return nil, &SyntaxError{Pos: tok.pos, Expected: "attribute, number or string", Found: tok.describe()}
}
