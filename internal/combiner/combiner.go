// Package combiner merges several rule trees into a single tree.
//
// Input trees are never modified. The combined tree shares them as
// sub-trees and only allocates the new connective nodes.
package combiner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TimurManjosov/rulesmith/internal/ast"
)

// ErrEmptyInput is returned when Combine is called without any rule.
var ErrEmptyInput = errors.New("no rules to combine")

// Strategy selects the connective used to join the inputs.
type Strategy string

const (
	// StrategyAll joins every input with AND.
	StrategyAll Strategy = "all"
	// StrategyAny joins every input with OR.
	StrategyAny Strategy = "any"
	// StrategyMajority joins with whichever connective appears most often
	// across the inputs, AND on a tie.
	StrategyMajority Strategy = "majority"
)

// ParseStrategy converts a config or wire value into a Strategy. The empty
// string maps to StrategyAll.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAll:
		return StrategyAll, nil
	case StrategyAny:
		return StrategyAny, nil
	case StrategyMajority:
		return StrategyMajority, nil
	}
	return "", fmt.Errorf("unknown combine strategy %q (want all, any or majority)", s)
}

type options struct {
	strategy Strategy
	dedupe   bool
}

// Option configures Combine.
type Option func(*options)

// WithStrategy sets the join strategy. The default is StrategyAll.
func WithStrategy(s Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithDedupe drops inputs structurally equal to an earlier input.
func WithDedupe() Option {
	return func(o *options) { o.dedupe = true }
}

// Combine joins roots into one tree. A single input is returned as is; two or
// more are folded right: AND(r1, AND(r2, r3)).
func Combine(roots []*ast.Node, opts ...Option) (*ast.Node, error) {
	o := options{strategy: StrategyAll}
	for _, opt := range opts {
		opt(&o)
	}
	if len(roots) == 0 {
		return nil, ErrEmptyInput
	}
	switch o.strategy {
	case StrategyAll, StrategyAny, StrategyMajority, "":
	default:
		return nil, fmt.Errorf("unknown combine strategy %q", o.strategy)
	}
	for i, r := range roots {
		if !r.IsBoolean() {
			return nil, fmt.Errorf("combine input %d: %w", i, &ast.InvalidNodeError{Reason: "rule root must be a logical or comparison node"})
		}
	}

	if o.dedupe {
		roots = dedupe(roots)
	}
	if len(roots) == 1 {
		return roots[0], nil
	}

	op := connective(o.strategy, roots)
	acc := roots[len(roots)-1]
	for i := len(roots) - 2; i >= 0; i-- {
		var err error
		acc, err = ast.NewLogical(op, roots[i], acc)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func connective(s Strategy, roots []*ast.Node) ast.Operator {
	switch s {
	case StrategyAll, "":
		return ast.OpAnd
	case StrategyAny:
		return ast.OpOr
	case StrategyMajority:
		var and, or int
		for _, r := range roots {
			counts := ast.CountOperators(r)
			and += counts[ast.OpAnd]
			or += counts[ast.OpOr]
		}
		if or > and {
			return ast.OpOr
		}
	}
	return ast.OpAnd
}

// dedupe keeps the first occurrence of each distinct tree, in input order.
func dedupe(roots []*ast.Node) []*ast.Node {
	seen := make(map[string][]*ast.Node, len(roots))
	out := make([]*ast.Node, 0, len(roots))
outer:
	for _, r := range roots {
		fp := ast.Fingerprint(r)
		for _, prev := range seen[fp] {
			if ast.Equal(prev, r) {
				continue outer
			}
		}
		seen[fp] = append(seen[fp], r)
		out = append(out, r)
	}
	return out
}
