package evaluator

import (
	"errors"
	"fmt"

	"github.com/TimurManjosov/rulesmith/internal/ast"
)

// Sentinel errors wrapped by the typed evaluation errors.
var (
	ErrMissingAttribute = errors.New("missing attribute")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrUnsupportedValue = errors.New("unsupported value")
)

// MissingAttributeError is returned when an evaluated comparison references an
// attribute absent from the record.
type MissingAttributeError struct {
	Name string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q", e.Name)
}

func (e *MissingAttributeError) Unwrap() error { return ErrMissingAttribute }

// TypeMismatchError is returned when a comparison mixes a number and a string.
// Left and Right describe the resolved operands, e.g. `attribute a = string "x"`.
type TypeMismatchError struct {
	Op    ast.Operator
	Left  string
	Right string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot compare %s %s %s", e.Left, e.Op, e.Right)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// UnsupportedValueError is returned when a record value is neither a number
// nor a string.
type UnsupportedValueError struct {
	Name string
	Type string
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("attribute %q has unsupported type %s (want number or string)", e.Name, e.Type)
}

func (e *UnsupportedValueError) Unwrap() error { return ErrUnsupportedValue }
