package rules

import (
	"errors"
	"reflect"
	"testing"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/parser"
	"github.com/TimurManjosov/rulesmith/internal/validation"
)

func TestNew(t *testing.T) {
	src := "(age > 30 AND department == 'Sales') OR (age < 25 AND salary > 100)"
	root := parser.MustParse(src)

	r, err := New("senior_sales", src, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name != "senior_sales" || r.Source != src || r.Root != root {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if want := []string{"age", "department", "salary"}; !reflect.DeepEqual(r.AttributeNames, want) {
		t.Fatalf("AttributeNames = %v, want %v", r.AttributeNames, want)
	}
	if r.Fingerprint != ast.Fingerprint(root) {
		t.Fatalf("Fingerprint = %q", r.Fingerprint)
	}
	if r.CreatedAt.IsZero() || !r.CreatedAt.Equal(r.UpdatedAt) {
		t.Fatalf("timestamps not initialised: %v %v", r.CreatedAt, r.UpdatedAt)
	}
}

func TestNew_InvalidName(t *testing.T) {
	for _, name := range []string{"", "has space", "a>1"} {
		_, err := New(name, "a > 1", parser.MustParse("a > 1"))
		if !errors.Is(err, validation.ErrInvalid) {
			t.Errorf("New(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestNew_InvalidTree(t *testing.T) {
	leaf, err := ast.NewAttribute("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New("r", "a", leaf); !errors.Is(err, ast.ErrInvalidNode) {
		t.Fatalf("operand root: error = %v, want ErrInvalidNode", err)
	}
	if _, err := New("r", "", nil); !errors.Is(err, ast.ErrInvalidNode) {
		t.Fatalf("nil root: error = %v, want ErrInvalidNode", err)
	}
}
