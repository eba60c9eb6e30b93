// Package ast defines the binary expression tree shared by the parser,
// evaluator, combiner and store.
//
// A tree is built from three kinds of nodes:
//
//	Logical     AND / OR over two boolean sub-trees
//	Comparison  < > <= >= == != over two operand leaves
//	Operand     an attribute reference or a literal (number or string)
//
// Nodes are treated as immutable once constructed. Transformations such as
// combining rules allocate new parent nodes and share existing sub-trees.
package ast

import (
	"strconv"
	"strings"
)

// Kind discriminates the node variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindLogical
	KindComparison
	KindOperand
)

func (k Kind) String() string {
	switch k {
	case KindLogical:
		return "logical"
	case KindComparison:
		return "comparison"
	case KindOperand:
		return "operand"
	default:
		return "invalid"
	}
}

// Operator is a logical connective or a comparison operator.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"

	OpLT  Operator = "<"
	OpGT  Operator = ">"
	OpLTE Operator = "<="
	OpGTE Operator = ">="
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// IsLogical reports whether o is AND or OR.
func (o Operator) IsLogical() bool {
	return o == OpAnd || o == OpOr
}

// IsComparison reports whether o is one of the six comparators.
func (o Operator) IsComparison() bool {
	switch o {
	case OpLT, OpGT, OpLTE, OpGTE, OpEQ, OpNEQ:
		return true
	}
	return false
}

// precedence is used when rendering canonical text; higher binds tighter.
func (o Operator) precedence() int {
	switch o {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	default:
		return 3
	}
}

// ParseOperator normalises the accepted spellings of an operator.
// Keywords are case-insensitive; "&&", "||" and "=" are accepted aliases.
func ParseOperator(s string) (Operator, bool) {
	switch strings.ToUpper(s) {
	case "AND", "&&":
		return OpAnd, true
	case "OR", "||":
		return OpOr, true
	case "<":
		return OpLT, true
	case ">":
		return OpGT, true
	case "<=":
		return OpLTE, true
	case ">=":
		return OpGTE, true
	case "==", "=":
		return OpEQ, true
	case "!=":
		return OpNEQ, true
	}
	return "", false
}

// ValueKind tags a literal or record value.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueNumber
	ValueString
)

func (k ValueKind) String() string {
	switch k {
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a tagged scalar: either a number or a string. The zero Value is
// invalid.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// NumberValue returns a numeric Value.
func NumberValue(f float64) Value { return Value{kind: ValueNumber, num: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: ValueString, str: s} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNumber() bool  { return v.kind == ValueNumber }
func (v Value) IsString() bool  { return v.kind == ValueString }
func (v Value) IsValid() bool   { return v.kind != ValueInvalid }

// Num returns the numeric payload. It is 0 for string values.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload. It is "" for numeric values.
func (v Value) Str() string { return v.str }

// Interface returns the payload as float64 or string, nil when invalid.
func (v Value) Interface() any {
	switch v.kind {
	case ValueNumber:
		return v.num
	case ValueString:
		return v.str
	}
	return nil
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueNumber:
		return v.num == o.num
	case ValueString:
		return v.str == o.str
	}
	return true
}

// String renders the value as rule-text literal syntax.
func (v Value) String() string {
	switch v.kind {
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueString:
		return quote(v.str)
	}
	return "<invalid>"
}

// Describe renders the value with its kind, e.g. `number 5` or `string "x"`.
func (v Value) Describe() string {
	return v.kind.String() + " " + v.String()
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}
