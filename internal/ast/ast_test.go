package ast

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func attr(t *testing.T, name string) *Node {
	t.Helper()
	n, err := NewAttribute(name)
	if err != nil {
		t.Fatalf("NewAttribute(%q): %v", name, err)
	}
	return n
}

func num(t *testing.T, f float64) *Node {
	t.Helper()
	n, err := NewLiteral(NumberValue(f))
	if err != nil {
		t.Fatalf("NewLiteral(%v): %v", f, err)
	}
	return n
}

func str(t *testing.T, s string) *Node {
	t.Helper()
	n, err := NewLiteral(StringValue(s))
	if err != nil {
		t.Fatalf("NewLiteral(%q): %v", s, err)
	}
	return n
}

func cmp(t *testing.T, op Operator, l, r *Node) *Node {
	t.Helper()
	n, err := NewComparison(op, l, r)
	if err != nil {
		t.Fatalf("NewComparison(%s): %v", op, err)
	}
	return n
}

func logical(t *testing.T, op Operator, l, r *Node) *Node {
	t.Helper()
	n, err := NewLogical(op, l, r)
	if err != nil {
		t.Fatalf("NewLogical(%s): %v", op, err)
	}
	return n
}

// a > 5 AND (b == 3 OR c < 1)
func sampleTree(t *testing.T) *Node {
	t.Helper()
	return logical(t, OpAnd,
		cmp(t, OpGT, attr(t, "a"), num(t, 5)),
		logical(t, OpOr,
			cmp(t, OpEQ, attr(t, "b"), num(t, 3)),
			cmp(t, OpLT, attr(t, "c"), num(t, 1)),
		),
	)
}

func TestConstructors_RejectInvalidNodes(t *testing.T) {
	a := &Node{Kind: KindOperand, Operand: &Operand{Attr: "a"}}
	five := &Node{Kind: KindOperand, Operand: &Operand{Lit: NumberValue(5)}}
	comparison := &Node{Kind: KindComparison, Op: OpGT, Left: a, Right: five}

	tests := []struct {
		name string
		fn   func() (*Node, error)
	}{
		{"logical with comparison op", func() (*Node, error) { return NewLogical(OpGT, comparison, comparison) }},
		{"logical missing child", func() (*Node, error) { return NewLogical(OpAnd, comparison, nil) }},
		{"logical over operands", func() (*Node, error) { return NewLogical(OpOr, a, five) }},
		{"comparison with logical op", func() (*Node, error) { return NewComparison(OpAnd, a, five) }},
		{"comparison missing operand", func() (*Node, error) { return NewComparison(OpLT, a, nil) }},
		{"comparison over comparison", func() (*Node, error) { return NewComparison(OpEQ, comparison, five) }},
		{"empty attribute and no literal", func() (*Node, error) { return NewAttribute("") }},
		{"attribute with spaces", func() (*Node, error) { return NewAttribute("first name") }},
		{"attribute named like keyword", func() (*Node, error) { return NewAttribute("and") }},
		{"zero literal", func() (*Node, error) { return NewLiteral(Value{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.fn()
			if err == nil {
				t.Fatalf("expected error, got node %v", n)
			}
			if n != nil {
				t.Fatalf("expected nil node on error")
			}
			if !errors.Is(err, ErrInvalidNode) {
				t.Fatalf("expected ErrInvalidNode, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := sampleTree(t).Validate(); err != nil {
		t.Fatalf("Validate() on valid tree: %v", err)
	}

	bad := &Node{Kind: KindLogical, Op: OpAnd,
		Left:  cmp(t, OpGT, attr(t, "a"), num(t, 1)),
		Right: &Node{Kind: KindOperand},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for operand without value")
	}

	if err := attr(t, "a").Validate(); err == nil {
		t.Fatal("expected error for operand as rule root")
	}

	var nilNode *Node
	if err := nilNode.Validate(); err == nil {
		t.Fatal("expected error for nil root")
	}
}

func TestAttributeNames_PreOrderDistinct(t *testing.T) {
	tree := logical(t, OpOr,
		sampleTree(t),
		cmp(t, OpNEQ, attr(t, "b"), attr(t, "d")),
	)

	got := AttributeNames(tree)
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AttributeNames() = %v, want %v", got, want)
	}
}

func TestAttributeNames_LiteralOnly(t *testing.T) {
	got := AttributeNames(cmp(t, OpLT, num(t, 1), num(t, 2)))
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestString_Canonical(t *testing.T) {
	tests := []struct {
		name string
		tree *Node
		want string
	}{
		{"sample", sampleTree(t), "a > 5 AND (b == 3 OR c < 1)"},
		{
			name: "left-nested and chain",
			tree: logical(t, OpAnd,
				logical(t, OpAnd, cmp(t, OpGT, attr(t, "a"), num(t, 1)), cmp(t, OpGT, attr(t, "b"), num(t, 2))),
				cmp(t, OpGT, attr(t, "c"), num(t, 3))),
			want: "a > 1 AND b > 2 AND c > 3",
		},
		{
			name: "right-nested and chain",
			tree: logical(t, OpAnd,
				cmp(t, OpGT, attr(t, "a"), num(t, 1)),
				logical(t, OpAnd, cmp(t, OpGT, attr(t, "b"), num(t, 2)), cmp(t, OpGT, attr(t, "c"), num(t, 3)))),
			want: "a > 1 AND (b > 2 AND c > 3)",
		},
		{
			name: "and under or",
			tree: logical(t, OpOr,
				logical(t, OpAnd, cmp(t, OpGT, attr(t, "a"), num(t, 1)), cmp(t, OpGT, attr(t, "b"), num(t, 2))),
				cmp(t, OpGT, attr(t, "c"), num(t, 3))),
			want: "a > 1 AND b > 2 OR c > 3",
		},
		{
			name: "string and fractional literals",
			tree: logical(t, OpAnd,
				cmp(t, OpEQ, attr(t, "department"), str(t, `Sa"les`)),
				cmp(t, OpGTE, attr(t, "salary"), num(t, -1250.5))),
			want: `department == "Sa\"les" AND salary >= -1250.5`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tree.String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEqualAndFingerprint(t *testing.T) {
	a, b := sampleTree(t), sampleTree(t)
	if !Equal(a, b) {
		t.Fatal("expected equal trees")
	}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("expected equal fingerprints")
	}

	c := cmp(t, OpGT, attr(t, "a"), num(t, 6))
	if Equal(a, c) {
		t.Fatal("expected different trees")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("expected different fingerprints")
	}

	// Same text, different literal kinds.
	if Equal(cmp(t, OpEQ, attr(t, "a"), num(t, 1)), cmp(t, OpEQ, attr(t, "a"), str(t, "1"))) {
		t.Fatal("number and string literal must differ")
	}
}

func TestSizeDepthCount(t *testing.T) {
	tree := sampleTree(t)
	if got := Size(tree); got != 11 {
		t.Errorf("Size() = %d, want 11", got)
	}
	if got := Depth(tree); got != 4 {
		t.Errorf("Depth() = %d, want 4", got)
	}
	counts := CountOperators(tree)
	if counts[OpAnd] != 1 || counts[OpOr] != 1 {
		t.Errorf("CountOperators() = %v", counts)
	}
}

func TestJSON_WireShape(t *testing.T) {
	tree := logical(t, OpAnd,
		cmp(t, OpGT, attr(t, "age"), num(t, 30)),
		cmp(t, OpEQ, attr(t, "department"), str(t, "Sales")),
	)

	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	want := `{"node_type":"AND",` +
		`"left":{"node_type":">","left":{"node_type":"operand","value":{"kind":"attribute","name":"age"}},"right":{"node_type":"operand","value":{"kind":"number","value":30}}},` +
		`"right":{"node_type":"==","left":{"node_type":"operand","value":{"kind":"attribute","name":"department"}},"right":{"node_type":"operand","value":{"kind":"string","value":"Sales"}}}}`
	if string(data) != want {
		t.Fatalf("Marshal() =\n%s\nwant\n%s", data, want)
	}

	var decoded Node
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !Equal(tree, &decoded) {
		t.Fatalf("round trip mismatch: %s vs %s", tree, &decoded)
	}
}

func TestJSON_ZeroValuedLiterals(t *testing.T) {
	tree := logical(t, OpOr,
		cmp(t, OpEQ, attr(t, "n"), num(t, 0)),
		cmp(t, OpEQ, attr(t, "s"), str(t, "")),
	)
	data, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Node
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	if !Equal(tree, &decoded) {
		t.Fatalf("round trip mismatch: %s", data)
	}
}

func TestJSON_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown node type", `{"node_type":"XOR","left":{},"right":{}}`},
		{"operator without children", `{"node_type":"AND"}`},
		{"operand without value", `{"node_type":"operand"}`},
		{"operand with children", `{"node_type":"operand","value":{"kind":"number","value":1},"left":{"node_type":"operand","value":{"kind":"number","value":1}}}`},
		{"operator with value", `{"node_type":"<","value":{"kind":"number","value":1},"left":{"node_type":"operand","value":{"kind":"attribute","name":"a"}},"right":{"node_type":"operand","value":{"kind":"number","value":1}}}`},
		{"unknown value kind", `{"node_type":"operand","value":{"kind":"bool","value":true}}`},
		{"number kind with string", `{"node_type":"operand","value":{"kind":"number","value":"x"}}`},
		{"number kind with null", `{"node_type":"operand","value":{"kind":"number","value":null}}`},
		{"number kind without value", `{"node_type":"operand","value":{"kind":"number"}}`},
		{"string kind with null", `{"node_type":"operand","value":{"kind":"string","value":null}}`},
		{"string kind without value", `{"node_type":"operand","value":{"kind":"string"}}`},
		{"logical over operands", `{"node_type":"OR","left":{"node_type":"operand","value":{"kind":"attribute","name":"a"}},"right":{"node_type":"operand","value":{"kind":"attribute","name":"b"}}}`},
		{"lowercase connective", `{"node_type":"and","left":{},"right":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Node
			if err := json.Unmarshal([]byte(tt.in), &n); err == nil {
				t.Fatalf("expected error for %s", tt.in)
			}
		})
	}
}

func TestJSON_DepthLimit(t *testing.T) {
	leaf := `{"node_type":"<","left":{"node_type":"operand","value":{"kind":"attribute","name":"a"}},"right":{"node_type":"operand","value":{"kind":"number","value":1}}}`
	doc := leaf
	for i := 0; i < maxWireDepth+1; i++ {
		doc = `{"node_type":"AND","left":` + leaf + `,"right":` + doc + `}`
	}
	var n Node
	err := json.Unmarshal([]byte(doc), &n)
	if err == nil || !strings.Contains(err.Error(), "too deep") {
		t.Fatalf("expected depth error, got %v", err)
	}
}

func TestParseOperator(t *testing.T) {
	tests := map[string]Operator{
		"AND": OpAnd, "and": OpAnd, "&&": OpAnd,
		"OR": OpOr, "Or": OpOr, "||": OpOr,
		"=": OpEQ, "==": OpEQ, "!=": OpNEQ,
		"<": OpLT, "<=": OpLTE, ">": OpGT, ">=": OpGTE,
	}
	for in, want := range tests {
		got, ok := ParseOperator(in)
		if !ok || got != want {
			t.Errorf("ParseOperator(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseOperator("=>"); ok {
		t.Error("ParseOperator(\"=>\") should fail")
	}
}

func TestValue(t *testing.T) {
	n := NumberValue(2.5)
	s := StringValue("x")
	if !n.IsNumber() || n.IsString() || n.Num() != 2.5 {
		t.Errorf("unexpected number value %#v", n)
	}
	if !s.IsString() || s.Str() != "x" {
		t.Errorf("unexpected string value %#v", s)
	}
	if n.Equal(s) || !n.Equal(NumberValue(2.5)) {
		t.Error("Equal() mismatch")
	}
	if got := s.Describe(); got != `string "x"` {
		t.Errorf("Describe() = %q", got)
	}
	if (Value{}).IsValid() {
		t.Error("zero Value must be invalid")
	}
}
