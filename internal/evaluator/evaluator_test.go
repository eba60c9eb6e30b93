package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/parser"
)

func record(t *testing.T, data map[string]any) Record {
	t.Helper()
	rec, err := RecordFromMap(data)
	if err != nil {
		t.Fatalf("RecordFromMap: %v", err)
	}
	return rec
}

func TestComparators(t *testing.T) {
	tests := []struct {
		name  string
		op    ast.Operator
		left  ast.Value
		right ast.Value
		want  bool
	}{
		{"lt numbers", ast.OpLT, ast.NumberValue(1), ast.NumberValue(2), true},
		{"gt numbers false", ast.OpGT, ast.NumberValue(1), ast.NumberValue(2), false},
		{"lte equal", ast.OpLTE, ast.NumberValue(2), ast.NumberValue(2), true},
		{"gte fractional", ast.OpGTE, ast.NumberValue(2.5), ast.NumberValue(2.49), true},
		{"eq numbers", ast.OpEQ, ast.NumberValue(3), ast.NumberValue(3), true},
		{"neq numbers", ast.OpNEQ, ast.NumberValue(3), ast.NumberValue(3), false},
		{"eq strings", ast.OpEQ, ast.StringValue("Sales"), ast.StringValue("Sales"), true},
		{"eq is case sensitive", ast.OpEQ, ast.StringValue("sales"), ast.StringValue("Sales"), false},
		{"lt strings lexicographic", ast.OpLT, ast.StringValue("apple"), ast.StringValue("banana"), true},
		{"gt strings byte order", ast.OpGT, ast.StringValue("a"), ast.StringValue("B"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check, ok := getComparator(tt.op)
			if !ok {
				t.Fatalf("no comparator for %q", tt.op)
			}
			c, ok := order(tt.left, tt.right)
			if !ok {
				t.Fatalf("order(%s, %s) reported a kind mismatch", tt.left, tt.right)
			}
			if got := check(c); got != tt.want {
				t.Fatalf("%s %s %s = %v, want %v", tt.left, tt.op, tt.right, got, tt.want)
			}
		})
	}

	if _, ok := getComparator(ast.OpAnd); ok {
		t.Fatal("AND must not have a comparator")
	}
}

func TestEvaluate(t *testing.T) {
	rule := parser.MustParse("(age > 30 AND department == 'Sales') OR (age < 25 AND department == 'Marketing')")

	tests := []struct {
		name string
		data map[string]any
		want bool
	}{
		{"senior sales", map[string]any{"age": 35, "department": "Sales"}, true},
		{"junior marketing", map[string]any{"age": 22, "department": "Marketing"}, true},
		{"senior marketing", map[string]any{"age": 35, "department": "Marketing"}, false},
		{"boundary age", map[string]any{"age": 30, "department": "Sales"}, false},
		{"extra attributes ignored", map[string]any{"age": 40, "department": "Sales", "salary": 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(rule, record(t, tt.data))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	tests := []struct {
		name string
		rule string
		data map[string]any
		want bool
	}{
		{"and skips right when left is false", "a > 5 AND missing == 1", map[string]any{"a": 1}, false},
		{"or skips right when left is true", "a > 5 OR missing == 1", map[string]any{"a": 10}, true},
		{"and skips mismatched right", "a > 5 AND b > 1", map[string]any{"a": 1, "b": "text"}, false},
		{"literal only rule", "1 < 2", map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(parser.MustParse(tt.rule), record(t, tt.data))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_MissingAttribute(t *testing.T) {
	_, err := Evaluate(parser.MustParse("a > 5 OR b == 'x'"), record(t, map[string]any{"a": 1}))

	var missing *MissingAttributeError
	if !errors.As(err, &missing) {
		t.Fatalf("error = %v, want *MissingAttributeError", err)
	}
	if missing.Name != "b" {
		t.Fatalf("Name = %q, want b", missing.Name)
	}
	if !errors.Is(err, ErrMissingAttribute) {
		t.Fatal("MissingAttributeError should wrap ErrMissingAttribute")
	}
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	_, err := Evaluate(parser.MustParse("age > 30"), record(t, map[string]any{"age": "thirty"}))

	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *TypeMismatchError", err)
	}
	if mismatch.Op != ast.OpGT {
		t.Fatalf("Op = %q, want >", mismatch.Op)
	}
	if !strings.Contains(mismatch.Left, "age") || !strings.Contains(mismatch.Left, `"thirty"`) {
		t.Fatalf("Left = %q, want attribute name and value", mismatch.Left)
	}
	if !strings.Contains(mismatch.Right, "number 30") {
		t.Fatalf("Right = %q, want the literal", mismatch.Right)
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatal("TypeMismatchError should wrap ErrTypeMismatch")
	}

	// Equality across kinds is a mismatch too, not false.
	if _, err := Evaluate(parser.MustParse("a == '1'"), record(t, map[string]any{"a": 1})); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("== across kinds: error = %v, want ErrTypeMismatch", err)
	}
}

func TestEvaluate_InvalidRoot(t *testing.T) {
	leaf, err := ast.NewAttribute("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Evaluate(leaf, Record{}); !errors.Is(err, ast.ErrInvalidNode) {
		t.Fatalf("operand root: error = %v, want ErrInvalidNode", err)
	}
	if _, err := Evaluate(nil, Record{}); !errors.Is(err, ast.ErrInvalidNode) {
		t.Fatalf("nil root: error = %v, want ErrInvalidNode", err)
	}
}

func TestEvaluate_DoesNotMutateInputs(t *testing.T) {
	rule := parser.MustParse("a > 5 AND (b == 'x' OR c < 1)")
	before := rule.String()
	rec := record(t, map[string]any{"a": 6, "b": "y", "c": 0})

	for range 3 {
		got, err := Evaluate(rule, rec)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !got {
			t.Fatal("expected true")
		}
	}
	if rule.String() != before {
		t.Fatalf("rule mutated: %s", rule)
	}
	if len(rec) != 3 || rec["a"].Num() != 6 {
		t.Fatalf("record mutated: %v", rec)
	}
}

func TestRecordFromMap(t *testing.T) {
	rec, err := RecordFromMap(map[string]any{
		"i":   42,
		"u":   uint8(7),
		"f":   1.5,
		"n":   json.Number("12.25"),
		"s":   "hello",
		"neg": int64(-3),
	})
	if err != nil {
		t.Fatalf("RecordFromMap: %v", err)
	}
	checks := map[string]ast.Value{
		"i":   ast.NumberValue(42),
		"u":   ast.NumberValue(7),
		"f":   ast.NumberValue(1.5),
		"n":   ast.NumberValue(12.25),
		"s":   ast.StringValue("hello"),
		"neg": ast.NumberValue(-3),
	}
	for name, want := range checks {
		if !rec[name].Equal(want) {
			t.Errorf("%s = %s, want %s", name, rec[name], want)
		}
	}

	for name, bad := range map[string]any{
		"bool":   true,
		"null":   nil,
		"list":   []any{1, 2},
		"object": map[string]any{"x": 1},
	} {
		_, err := RecordFromMap(map[string]any{name: bad})
		var unsupported *UnsupportedValueError
		if !errors.As(err, &unsupported) {
			t.Errorf("%s: error = %v, want *UnsupportedValueError", name, err)
			continue
		}
		if unsupported.Name != name {
			t.Errorf("%s: Name = %q", name, unsupported.Name)
		}
	}
}

func TestEvaluateBatch(t *testing.T) {
	rule := parser.MustParse("score >= 50")
	records := make([]Record, 100)
	for i := range records {
		records[i] = Record{"score": ast.NumberValue(float64(i))}
	}
	records[10] = Record{"score": ast.StringValue("high")}

	results := EvaluateBatch(context.Background(), rule, records, 4)
	if len(results) != len(records) {
		t.Fatalf("got %d results, want %d", len(results), len(records))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("results[%d].Index = %d", i, r.Index)
		}
		if i == 10 {
			if !errors.Is(r.Err, ErrTypeMismatch) {
				t.Fatalf("results[10].Err = %v, want type mismatch", r.Err)
			}
			continue
		}
		if r.Err != nil {
			t.Fatalf("results[%d].Err = %v", i, r.Err)
		}
		if want := i >= 50; r.Result != want {
			t.Fatalf("results[%d].Result = %v, want %v", i, r.Result, want)
		}
	}
}

func TestEvaluateBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := EvaluateBatch(ctx, parser.MustParse("a > 1"), []Record{{"a": ast.NumberValue(2)}}, 0)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("Err = %v, want context.Canceled", results[0].Err)
	}
}
