// Package evaluator walks a rule tree against a record of attribute values.
//
// Evaluation is a pure function of its inputs: the tree and the record are
// never modified, and the same inputs always produce the same verdict.
// AND and OR short-circuit left to right, so attributes referenced only by a
// skipped branch may be absent from the record.
package evaluator

import (
	"encoding/json"
	"fmt"

	"github.com/TimurManjosov/rulesmith/internal/ast"
)

// Record maps attribute names to values for one evaluation.
type Record map[string]ast.Value

// RecordFromMap converts decoded JSON (or any loosely typed map) into a
// Record. Numbers and strings are accepted; anything else fails with
// *UnsupportedValueError.
func RecordFromMap(data map[string]any) (Record, error) {
	rec := make(Record, len(data))
	for name, raw := range data {
		v, err := toValue(raw)
		if err != nil {
			return nil, &UnsupportedValueError{Name: name, Type: err.Error()}
		}
		rec[name] = v
	}
	return rec, nil
}

func toValue(raw any) (ast.Value, error) {
	switch v := raw.(type) {
	case string:
		return ast.StringValue(v), nil
	case float64:
		return ast.NumberValue(v), nil
	case float32:
		return ast.NumberValue(float64(v)), nil
	case int:
		return ast.NumberValue(float64(v)), nil
	case int8:
		return ast.NumberValue(float64(v)), nil
	case int16:
		return ast.NumberValue(float64(v)), nil
	case int32:
		return ast.NumberValue(float64(v)), nil
	case int64:
		return ast.NumberValue(float64(v)), nil
	case uint:
		return ast.NumberValue(float64(v)), nil
	case uint8:
		return ast.NumberValue(float64(v)), nil
	case uint16:
		return ast.NumberValue(float64(v)), nil
	case uint32:
		return ast.NumberValue(float64(v)), nil
	case uint64:
		return ast.NumberValue(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return ast.Value{}, fmt.Errorf("malformed number %q", v.String())
		}
		return ast.NumberValue(f), nil
	case nil:
		return ast.Value{}, fmt.Errorf("null")
	}
	return ast.Value{}, fmt.Errorf("%T", raw)
}

// Evaluate returns the verdict of the rule rooted at root for rec.
func Evaluate(root *ast.Node, rec Record) (bool, error) {
	if !root.IsBoolean() {
		return false, &ast.InvalidNodeError{Reason: "rule root must be a logical or comparison node"}
	}
	return eval(root, rec)
}

func eval(n *ast.Node, rec Record) (bool, error) {
	switch n.Kind {
	case ast.KindLogical:
		if n.Left == nil || n.Right == nil {
			return false, &ast.InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "requires two children"}
		}
		left, err := eval(n.Left, rec)
		if err != nil {
			return false, err
		}
		switch n.Op {
		case ast.OpAnd:
			if !left {
				return false, nil
			}
		case ast.OpOr:
			if left {
				return true, nil
			}
		default:
			return false, &ast.InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "operator is not AND or OR"}
		}
		return eval(n.Right, rec)

	case ast.KindComparison:
		return compare(n, rec)
	}
	return false, &ast.InvalidNodeError{Kind: n.Kind, Reason: "expected a boolean expression"}
}

func compare(n *ast.Node, rec Record) (bool, error) {
	check, ok := getComparator(n.Op)
	if !ok {
		return false, &ast.InvalidNodeError{Kind: n.Kind, Op: n.Op, Reason: "unknown comparison operator"}
	}
	left, err := resolve(n.Left, rec)
	if err != nil {
		return false, err
	}
	right, err := resolve(n.Right, rec)
	if err != nil {
		return false, err
	}
	c, ok := order(left, right)
	if !ok {
		return false, &TypeMismatchError{
			Op:    n.Op,
			Left:  describe(n.Left, left),
			Right: describe(n.Right, right),
		}
	}
	return check(c), nil
}

func resolve(n *ast.Node, rec Record) (ast.Value, error) {
	if n == nil || n.Kind != ast.KindOperand || n.Operand == nil {
		return ast.Value{}, &ast.InvalidNodeError{Kind: ast.KindComparison, Reason: "children must be operands"}
	}
	if !n.Operand.IsAttribute() {
		return n.Operand.Lit, nil
	}
	v, ok := rec[n.Operand.Attr]
	if !ok || !v.IsValid() {
		return ast.Value{}, &MissingAttributeError{Name: n.Operand.Attr}
	}
	return v, nil
}

func describe(n *ast.Node, v ast.Value) string {
	if n.Operand.IsAttribute() {
		return fmt.Sprintf("attribute %s = %s", n.Operand.Attr, v.Describe())
	}
	return v.Describe()
}
