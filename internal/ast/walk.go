package ast

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Walk visits the tree rooted at n in pre-order (node, left, right).
// Children of a node are skipped when fn returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	Walk(n.Left, fn)
	Walk(n.Right, fn)
}

// AttributeNames returns the distinct attribute names referenced by the tree,
// ordered by first encounter in a pre-order traversal. The result is never nil.
func AttributeNames(n *Node) []string {
	names := make([]string, 0)
	seen := make(map[string]struct{})
	Walk(n, func(c *Node) bool {
		if c.Kind == KindOperand && c.Operand != nil && c.Operand.IsAttribute() {
			if _, dup := seen[c.Operand.Attr]; !dup {
				seen[c.Operand.Attr] = struct{}{}
				names = append(names, c.Operand.Attr)
			}
		}
		return true
	})
	return names
}

// Equal reports whether two trees have identical structure and payloads.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Op != b.Op {
		return false
	}
	if a.Kind == KindOperand {
		if a.Operand == nil || b.Operand == nil {
			return a.Operand == b.Operand
		}
		return a.Operand.Attr == b.Operand.Attr && a.Operand.Lit.Equal(b.Operand.Lit)
	}
	return Equal(a.Left, b.Left) && Equal(a.Right, b.Right)
}

// Size returns the number of nodes in the tree.
func Size(n *Node) int {
	count := 0
	Walk(n, func(*Node) bool {
		count++
		return true
	})
	return count
}

// Depth returns the height of the tree; a single leaf has depth 1.
func Depth(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + max(Depth(n.Left), Depth(n.Right))
}

// CountOperators returns how many logical nodes of each connective the tree holds.
func CountOperators(n *Node) map[Operator]int {
	counts := map[Operator]int{OpAnd: 0, OpOr: 0}
	Walk(n, func(c *Node) bool {
		if c.Kind == KindLogical {
			counts[c.Op]++
		}
		return true
	})
	return counts
}

// Fingerprint is a stable hash of the canonical text of the tree.
// Structurally equal trees share a fingerprint.
func Fingerprint(n *Node) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(n.String()))
}

// String renders the tree as canonical rule text. Parsing the result yields a
// tree equal to n.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	switch n.Kind {
	case KindOperand:
		if n.Operand == nil {
			b.WriteString("<invalid>")
			return
		}
		if n.Operand.IsAttribute() {
			b.WriteString(n.Operand.Attr)
			return
		}
		b.WriteString(n.Operand.Lit.String())
	case KindComparison:
		n.Left.write(b)
		b.WriteByte(' ')
		b.WriteString(string(n.Op))
		b.WriteByte(' ')
		n.Right.write(b)
	case KindLogical:
		// Connectives are left-associative, so an equal-precedence right child
		// needs parentheses to keep its grouping.
		writeGrouped(b, n.Left, n.Left.Kind == KindLogical && n.Left.Op.precedence() < n.Op.precedence())
		b.WriteByte(' ')
		b.WriteString(string(n.Op))
		b.WriteByte(' ')
		writeGrouped(b, n.Right, n.Right.Kind == KindLogical && n.Right.Op.precedence() <= n.Op.precedence())
	default:
		b.WriteString("<invalid>")
	}
}

func writeGrouped(b *strings.Builder, n *Node, paren bool) {
	if n == nil {
		b.WriteString("<nil>")
		return
	}
	if paren {
		b.WriteByte('(')
	}
	n.write(b)
	if paren {
		b.WriteByte(')')
	}
}
