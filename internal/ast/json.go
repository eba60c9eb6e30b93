package ast

import (
	"encoding/json"
	"fmt"
)

// Wire format:
//
//	{"node_type": "AND", "left": {...}, "right": {...}}
//	{"node_type": ">",   "left": {...}, "right": {...}}
//	{"node_type": "operand", "value": {"kind": "attribute", "name": "age"}}
//	{"node_type": "operand", "value": {"kind": "number", "value": 30}}
//	{"node_type": "operand", "value": {"kind": "string", "value": "Sales"}}
//
// Only operand leaves carry "value"; left/right are omitted when absent.

// NodeTypeOperand is the node_type of every operand leaf.
const NodeTypeOperand = "operand"

const (
	wireKindAttribute = "attribute"
	wireKindNumber    = "number"
	wireKindString    = "string"
)

// maxWireDepth bounds recursion when decoding untrusted JSON.
const maxWireDepth = 4096

type wireNode struct {
	NodeType string     `json:"node_type"`
	Left     *wireNode  `json:"left,omitempty"`
	Right    *wireNode  `json:"right,omitempty"`
	Value    *wireValue `json:"value,omitempty"`
}

type wireValue struct {
	Kind  string          `json:"kind"`
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the node in the wire format.
func (n Node) MarshalJSON() ([]byte, error) {
	w, err := toWire(&n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire format, enforcing the node invariants.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := fromWire(&w, 0)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

func toWire(n *Node) (*wireNode, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case KindOperand:
		if n.Operand == nil {
			return nil, &InvalidNodeError{Kind: n.Kind, Reason: "missing value"}
		}
		v := &wireValue{}
		if n.Operand.IsAttribute() {
			v.Kind = wireKindAttribute
			v.Name = n.Operand.Attr
		} else {
			raw, err := json.Marshal(n.Operand.Lit.Interface())
			if err != nil {
				return nil, fmt.Errorf("encode literal: %w", err)
			}
			v.Kind = n.Operand.Lit.Kind().String()
			v.Value = raw
		}
		return &wireNode{NodeType: NodeTypeOperand, Value: v}, nil
	case KindLogical, KindComparison:
		left, err := toWire(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := toWire(n.Right)
		if err != nil {
			return nil, err
		}
		return &wireNode{NodeType: string(n.Op), Left: left, Right: right}, nil
	}
	return nil, &InvalidNodeError{Kind: n.Kind, Reason: "unknown node kind"}
}

func fromWire(w *wireNode, depth int) (*Node, error) {
	if depth > maxWireDepth {
		return nil, &InvalidNodeError{Reason: "tree too deep"}
	}
	if w.NodeType == NodeTypeOperand {
		if w.Left != nil || w.Right != nil {
			return nil, &InvalidNodeError{Kind: KindOperand, Reason: "operands cannot have children"}
		}
		if w.Value == nil {
			return nil, &InvalidNodeError{Kind: KindOperand, Reason: "missing value"}
		}
		return operandFromWire(w.Value)
	}

	op, ok := ParseOperator(w.NodeType)
	if !ok || string(op) != w.NodeType {
		return nil, &InvalidNodeError{Reason: fmt.Sprintf("unknown node_type %q", w.NodeType)}
	}
	if w.Value != nil {
		return nil, &InvalidNodeError{Op: op, Reason: "operator nodes must not carry a value"}
	}
	if w.Left == nil || w.Right == nil {
		kind := KindComparison
		if op.IsLogical() {
			kind = KindLogical
		}
		return nil, &InvalidNodeError{Kind: kind, Op: op, Reason: "requires two children"}
	}
	left, err := fromWire(w.Left, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := fromWire(w.Right, depth+1)
	if err != nil {
		return nil, err
	}
	if op.IsLogical() {
		return NewLogical(op, left, right)
	}
	return NewComparison(op, left, right)
}

func operandFromWire(v *wireValue) (*Node, error) {
	switch v.Kind {
	case wireKindNumber, wireKindString:
		if len(v.Value) == 0 || string(v.Value) == "null" {
			return nil, &InvalidNodeError{Kind: KindOperand, Reason: "missing value"}
		}
	}
	switch v.Kind {
	case wireKindAttribute:
		return NewAttribute(v.Name)
	case wireKindNumber:
		var f float64
		if err := json.Unmarshal(v.Value, &f); err != nil {
			return nil, &InvalidNodeError{Kind: KindOperand, Reason: "number literal: " + err.Error()}
		}
		return NewLiteral(NumberValue(f))
	case wireKindString:
		var s string
		if err := json.Unmarshal(v.Value, &s); err != nil {
			return nil, &InvalidNodeError{Kind: KindOperand, Reason: "string literal: " + err.Error()}
		}
		return NewLiteral(StringValue(s))
	}
	return nil, &InvalidNodeError{Kind: KindOperand, Reason: fmt.Sprintf("unknown value kind %q", v.Kind)}
}
