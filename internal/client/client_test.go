package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TimurManjosov/rulesmith/internal/testutil"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	url, _ := testutil.NewTestAPI(t)
	return NewClient(url + "/")
}

func TestClient_RuleLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.CreateRule(ctx, "adults", "age >= 18")
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if created.Name != "adults" || created.Root.String() != "age >= 18" {
		t.Fatalf("unexpected rule: %+v", created)
	}

	got, err := c.GetRule(ctx, "adults")
	if err != nil || got.Fingerprint != created.Fingerprint {
		t.Fatalf("GetRule = %+v, %v", got, err)
	}

	list, err := c.ListRules(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListRules = %+v, %v", list, err)
	}

	attrs, err := c.Attributes(ctx, "adults")
	if err != nil || len(attrs) != 1 || attrs[0] != "age" {
		t.Fatalf("Attributes = %v, %v", attrs, err)
	}

	ok, err := c.Evaluate(ctx, "adults", map[string]any{"age": 21})
	if err != nil || !ok {
		t.Fatalf("Evaluate = %v, %v", ok, err)
	}

	batch, err := c.EvaluateBatch(ctx, "adults", []map[string]any{{"age": 30}, {"age": 3}, {}})
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}
	if batch.Matched != 1 || batch.Failed != 1 || batch.Results[2].Error.Code != "MISSING_ATTRIBUTE" {
		t.Fatalf("unexpected batch: %+v", batch)
	}

	if err := c.DeleteRule(ctx, "adults"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if _, err := c.GetRule(ctx, "adults"); !IsNotFound(err) {
		t.Fatalf("GetRule after delete = %v, want not found", err)
	}
}

func TestClient_CombineAndParse(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tree, err := c.Combine(ctx, []string{"a > 1", "b > 2"}, CombineOptions{Strategy: "any"})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if tree.Text != "a > 1 OR b > 2" || tree.AST == nil {
		t.Fatalf("unexpected tree: %+v", tree)
	}

	parsed, err := c.Parse(ctx, "x == 'y'")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Text != `x == "y"` || len(parsed.AttributeNames) != 1 {
		t.Fatalf("unexpected tree: %+v", parsed)
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t)

	_, err := c.CreateRule(context.Background(), "r1", "age >")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T %v, want *APIError", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "INVALID_RULE" {
		t.Fatalf("unexpected API error: %+v", apiErr)
	}
	if apiErr.Fields["position"] == "" {
		t.Fatalf("position field missing: %+v", apiErr)
	}
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).ListRules(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Fatalf("unexpected error: %v", err)
	}
}
