package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// Client is an HTTP client for the rulesmith /v1 API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error (status %d", e.StatusCode)
	if e.Code != "" {
		msg += ", " + e.Code
	}
	msg += "): " + e.Message
	for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
		msg += fmt.Sprintf(" [%s: %s]", k, e.Fields[k])
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Tree is a parsed or combined rule tree.
type Tree struct {
	AST            *ast.Node `json:"ast"`
	Text           string    `json:"text"`
	AttributeNames []string  `json:"attribute_names"`
	Fingerprint    string    `json:"fingerprint"`
}

// RecordError explains why one record of a batch failed.
type RecordError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RecordResult is the outcome for one record of a batch.
type RecordResult struct {
	Index  int          `json:"index"`
	Result bool         `json:"result"`
	Error  *RecordError `json:"error,omitempty"`
}

// BatchResult is the response of a batch evaluation.
type BatchResult struct {
	Rule    string         `json:"rule"`
	Results []RecordResult `json:"results"`
	Matched int            `json:"matched"`
	Failed  int            `json:"failed"`
}

// CombineOptions are the optional knobs of Combine.
type CombineOptions struct {
	Strategy string
	Dedupe   bool
}

// CreateRule parses and stores a rule.
func (c *Client) CreateRule(ctx context.Context, name, text string) (*rules.Rule, error) {
	var out rules.Rule
	body := map[string]string{"name": name, "rule": text}
	if err := c.do(ctx, http.MethodPost, "/v1/rules", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRule retrieves a single rule by name
func (c *Client) GetRule(ctx context.Context, name string) (*rules.Rule, error) {
	var out rules.Rule
	if err := c.do(ctx, http.MethodGet, rulePath(name, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRules retrieves all stored rules sorted by name
func (c *Client) ListRules(ctx context.Context) ([]rules.Rule, error) {
	var out struct {
		Rules []rules.Rule `json:"rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rules", nil, &out); err != nil {
		return nil, err
	}
	return out.Rules, nil
}

// DeleteRule removes a rule
func (c *Client) DeleteRule(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, rulePath(name, ""), nil, nil)
}

// Attributes returns the attribute names a rule references.
func (c *Client) Attributes(ctx context.Context, name string) ([]string, error) {
	var out struct {
		Attributes []string `json:"attributes"`
	}
	if err := c.do(ctx, http.MethodGet, rulePath(name, "/attributes"), nil, &out); err != nil {
		return nil, err
	}
	return out.Attributes, nil
}

// Evaluate runs a stored rule against one record.
func (c *Client) Evaluate(ctx context.Context, name string, data map[string]any) (bool, error) {
	var out struct {
		Result bool `json:"result"`
	}
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPost, rulePath(name, "/evaluate"), body, &out); err != nil {
		return false, err
	}
	return out.Result, nil
}

// EvaluateBatch runs a stored rule against many records.
func (c *Client) EvaluateBatch(ctx context.Context, name string, records []map[string]any) (*BatchResult, error) {
	var out BatchResult
	body := map[string]any{"records": records}
	if err := c.do(ctx, http.MethodPost, rulePath(name, "/evaluate/batch"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Combine merges rule names or rule texts into one tree.
func (c *Client) Combine(ctx context.Context, inputs []string, opts CombineOptions) (*Tree, error) {
	var out Tree
	body := map[string]any{"rules": inputs, "strategy": opts.Strategy, "dedupe": opts.Dedupe}
	if err := c.do(ctx, http.MethodPost, "/v1/rules/combine", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Parse parses rule text on the server without storing it.
func (c *Client) Parse(ctx context.Context, text string) (*Tree, error) {
	var out Tree
	if err := c.do(ctx, http.MethodPost, "/v1/rules/parse", map[string]string{"rule": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func rulePath(name, suffix string) string {
	return "/v1/rules/" + url.PathEscape(name) + suffix
}

// do sends a JSON request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
