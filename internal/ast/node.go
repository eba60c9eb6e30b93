package ast

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidNode is wrapped by every InvalidNodeError.
var ErrInvalidNode = errors.New("invalid node")

// InvalidNodeError reports a node that violates the tree invariants.
type InvalidNodeError struct {
	Kind   Kind
	Op     Operator
	Reason string
}

func (e *InvalidNodeError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("invalid %s node %q: %s", e.Kind, e.Op, e.Reason)
	}
	return fmt.Sprintf("invalid %s node: %s", e.Kind, e.Reason)
}

func (e *InvalidNodeError) Unwrap() error { return ErrInvalidNode }

// attrPattern mirrors the identifier syntax accepted by the parser.
var attrPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Operand is the payload of a leaf: an attribute reference when Attr is set,
// otherwise the literal Lit.
type Operand struct {
	Attr string
	Lit  Value
}

// IsAttribute reports whether the operand references a record attribute.
func (o *Operand) IsAttribute() bool { return o.Attr != "" }

// Node is one vertex of a rule tree.
type Node struct {
	Kind    Kind
	Op      Operator // logical and comparison nodes
	Left    *Node
	Right   *Node
	Operand *Operand // operand nodes only
}

// NewLogical builds an AND/OR node over two boolean-valued sub-trees.
func NewLogical(op Operator, left, right *Node) (*Node, error) {
	n := &Node{Kind: KindLogical, Op: op, Left: left, Right: right}
	if err := n.check(); err != nil {
		return nil, err
	}
	return n, nil
}

// NewComparison builds a comparison node over two operand leaves.
func NewComparison(op Operator, left, right *Node) (*Node, error) {
	n := &Node{Kind: KindComparison, Op: op, Left: left, Right: right}
	if err := n.check(); err != nil {
		return nil, err
	}
	return n, nil
}

// NewAttribute builds a leaf referencing the named attribute.
func NewAttribute(name string) (*Node, error) {
	n := &Node{Kind: KindOperand, Operand: &Operand{Attr: name}}
	if err := n.check(); err != nil {
		return nil, err
	}
	return n, nil
}

// NewLiteral builds a literal leaf.
func NewLiteral(v Value) (*Node, error) {
	n := &Node{Kind: KindOperand, Operand: &Operand{Lit: v}}
	if err := n.check(); err != nil {
		return nil, err
	}
	return n, nil
}

func isKeyword(s string) bool {
	op, ok := ParseOperator(s)
	return ok && op.IsLogical()
}

// IsBoolean reports whether the node produces a boolean when evaluated.
func (n *Node) IsBoolean() bool {
	return n != nil && (n.Kind == KindLogical || n.Kind == KindComparison)
}

// check validates n without descending into its children.
func (n *Node) check() error {
	switch n.Kind {
	case KindLogical:
		if !n.Op.IsLogical() {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "operator is not AND or OR"}
		}
		if n.Left == nil || n.Right == nil {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "requires two children"}
		}
		if !n.Left.IsBoolean() || !n.Right.IsBoolean() {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "children must be boolean expressions"}
		}
		if n.Operand != nil {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "must not carry an operand"}
		}
	case KindComparison:
		if !n.Op.IsComparison() {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "unknown comparison operator"}
		}
		if n.Left == nil || n.Right == nil {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "requires two operands"}
		}
		if n.Left.Kind != KindOperand || n.Right.Kind != KindOperand {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "children must be operands"}
		}
		if n.Operand != nil {
			return &InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "must not carry an operand"}
		}
	case KindOperand:
		if n.Left != nil || n.Right != nil {
			return &InvalidNodeError{Kind: n.Kind, Reason: "operands cannot have children"}
		}
		if n.Operand == nil {
			return &InvalidNodeError{Kind: n.Kind, Reason: "missing value"}
		}
		if n.Operand.IsAttribute() {
			if !attrPattern.MatchString(n.Operand.Attr) || isKeyword(n.Operand.Attr) {
				return &InvalidNodeError{Kind: n.Kind, Reason: fmt.Sprintf("invalid attribute name %q", n.Operand.Attr)}
			}
		} else if !n.Operand.Lit.IsValid() {
			return &InvalidNodeError{Kind: n.Kind, Reason: "missing value"}
		}
	default:
		return &InvalidNodeError{Kind: n.Kind, Reason: "unknown node kind"}
	}
	return nil
}

// Validate checks the invariants of every node in the tree rooted at n.
// The root of a rule must be boolean-valued.
func (n *Node) Validate() error {
	if n == nil {
		return &InvalidNodeError{Reason: "nil node"}
	}
	if !n.IsBoolean() {
		return &InvalidNodeError{Kind: n.Kind, Reason: "rule root must be a logical or comparison node"}
	}
	var err error
	Walk(n, func(c *Node) bool {
		if err != nil {
			return false
		}
		err = c.check()
		return err == nil
	})
	return err
}
