package combiner

import (
	"errors"
	"testing"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/evaluator"
	"github.com/TimurManjosov/rulesmith/internal/parser"
)

func parseAll(t *testing.T, texts ...string) []*ast.Node {
	t.Helper()
	out := make([]*ast.Node, len(texts))
	for i, text := range texts {
		root, err := parser.Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		out[i] = root
	}
	return out
}

func TestCombine_Empty(t *testing.T) {
	root, err := Combine(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("error = %v, want ErrEmptyInput", err)
	}
	if root != nil {
		t.Fatal("expected nil tree")
	}
}

func TestCombine_SingleIsIdentity(t *testing.T) {
	in := parseAll(t, "a > 5 OR b < 2")
	for _, s := range []Strategy{StrategyAll, StrategyAny, StrategyMajority} {
		got, err := Combine(in, WithStrategy(s))
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if got != in[0] {
			t.Fatalf("%s: single input should be returned unchanged", s)
		}
	}
}

func TestCombine_RightFold(t *testing.T) {
	in := parseAll(t, "a > 1", "b > 2", "c > 3")
	got, err := Combine(in)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got.Op != ast.OpAnd || got.Left != in[0] {
		t.Fatalf("root should be AND with the first input on the left, got %s", got)
	}
	if got.Right.Op != ast.OpAnd || got.Right.Left != in[1] || got.Right.Right != in[2] {
		t.Fatalf("expected AND(r1, AND(r2, r3)), got %s", got)
	}
	if want := "a > 1 AND (b > 2 AND c > 3)"; got.String() != want {
		t.Fatalf("String() = %q, want %q", got.String(), want)
	}
}

func TestCombine_DoesNotMutateInputs(t *testing.T) {
	in := parseAll(t, "a > 1 OR b > 2", "c == 'x'")
	before := []string{in[0].String(), in[1].String()}
	if _, err := Combine(in, WithStrategy(StrategyAny)); err != nil {
		t.Fatal(err)
	}
	for i, r := range in {
		if r.String() != before[i] {
			t.Fatalf("input %d mutated: %s", i, r)
		}
	}
}

func TestCombine_IsConjunction(t *testing.T) {
	in := parseAll(t, "age > 30", "department == 'Sales'", "salary >= 1000 OR experience > 5")
	combined, err := Combine(in)
	if err != nil {
		t.Fatal(err)
	}

	records := []evaluator.Record{
		{"age": ast.NumberValue(35), "department": ast.StringValue("Sales"), "salary": ast.NumberValue(2000), "experience": ast.NumberValue(1)},
		{"age": ast.NumberValue(35), "department": ast.StringValue("Sales"), "salary": ast.NumberValue(10), "experience": ast.NumberValue(1)},
		{"age": ast.NumberValue(20), "department": ast.StringValue("Sales"), "salary": ast.NumberValue(2000), "experience": ast.NumberValue(9)},
		{"age": ast.NumberValue(40), "department": ast.StringValue("HR"), "salary": ast.NumberValue(10), "experience": ast.NumberValue(9)},
	}
	for i, rec := range records {
		want := true
		for _, r := range in {
			ok, err := evaluator.Evaluate(r, rec)
			if err != nil {
				t.Fatalf("record %d: %v", i, err)
			}
			want = want && ok
		}
		got, err := evaluator.Evaluate(combined, rec)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("record %d: combined = %v, conjunction of inputs = %v", i, got, want)
		}
	}
}

func TestCombine_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		in       []string
		wantOp   ast.Operator
	}{
		{"all", StrategyAll, []string{"a > 1 OR b > 1", "c > 1"}, ast.OpAnd},
		{"any", StrategyAny, []string{"a > 1 AND b > 1", "c > 1"}, ast.OpOr},
		{"majority or", StrategyMajority, []string{"a > 1 OR b > 1 OR c > 1", "d > 1 AND e > 1"}, ast.OpOr},
		{"majority and", StrategyMajority, []string{"a > 1 AND b > 1", "c > 1 AND d > 1 OR e > 1"}, ast.OpAnd},
		{"majority tie prefers and", StrategyMajority, []string{"a > 1 OR b > 1", "c > 1 AND d > 1"}, ast.OpAnd},
		{"majority no connectives", StrategyMajority, []string{"a > 1", "b > 1"}, ast.OpAnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Combine(parseAll(t, tt.in...), WithStrategy(tt.strategy))
			if err != nil {
				t.Fatalf("Combine: %v", err)
			}
			if got.Op != tt.wantOp {
				t.Fatalf("root op = %q, want %q", got.Op, tt.wantOp)
			}
		})
	}
}

func TestCombine_UnknownStrategy(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		opts []Option
	}{
		{"single input", []string{"a > 1"}, nil},
		{"single after dedupe", []string{"a > 1", "(a > 1)"}, []Option{WithDedupe()}},
		{"two inputs", []string{"a > 1", "b > 1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithStrategy("bogus")}, tt.opts...)
			if got, err := Combine(parseAll(t, tt.in...), opts...); err == nil {
				t.Fatalf("Combine = %s, want unknown strategy error", got)
			}
		})
	}
}

func TestCombine_Dedupe(t *testing.T) {
	in := parseAll(t, "a > 1", "b > 2", "(a > 1)", "b > 2")
	got, err := Combine(in, WithDedupe())
	if err != nil {
		t.Fatal(err)
	}
	if want := "a > 1 AND b > 2"; got.String() != want {
		t.Fatalf("String() = %q, want %q", got.String(), want)
	}

	single, err := Combine(parseAll(t, "a > 1", "a > 1"), WithDedupe())
	if err != nil {
		t.Fatal(err)
	}
	if single.Kind != ast.KindComparison {
		t.Fatalf("duplicates should collapse to the single rule, got %s", single)
	}
}

func TestCombine_RejectsNonBooleanInput(t *testing.T) {
	leaf, err := ast.NewAttribute("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Combine([]*ast.Node{leaf}); !errors.Is(err, ast.ErrInvalidNode) {
		t.Fatalf("error = %v, want ErrInvalidNode", err)
	}
	if _, err := Combine([]*ast.Node{nil}); !errors.Is(err, ast.ErrInvalidNode) {
		t.Fatalf("nil input: error = %v, want ErrInvalidNode", err)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAll, false},
		{"all", StrategyAll, false},
		{"ANY", StrategyAny, false},
		{" majority ", StrategyMajority, false},
		{"most", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
