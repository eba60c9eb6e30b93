package evaluator

import (
	"cmp"
	"strings"

	"github.com/TimurManjosov/rulesmith/internal/ast"
)

// comparator turns the three-way ordering of two same-kind values into a verdict.
type comparator func(order int) bool

var comparators = map[ast.Operator]comparator{
	ast.OpLT:  func(c int) bool { return c < 0 },
	ast.OpGT:  func(c int) bool { return c > 0 },
	ast.OpLTE: func(c int) bool { return c <= 0 },
	ast.OpGTE: func(c int) bool { return c >= 0 },
	ast.OpEQ:  func(c int) bool { return c == 0 },
	ast.OpNEQ: func(c int) bool { return c != 0 },
}

func getComparator(op ast.Operator) (comparator, bool) {
	c, ok := comparators[op]
	return c, ok
}

// order compares two values of the same kind: numerically for numbers,
// lexicographically (byte-wise) for strings. ok is false on a kind mismatch.
func order(left, right ast.Value) (c int, ok bool) {
	switch {
	case left.IsNumber() && right.IsNumber():
		return cmp.Compare(left.Num(), right.Num()), true
	case left.IsString() && right.IsString():
		return strings.Compare(left.Str(), right.Str()), true
	}
	return 0, false
}
