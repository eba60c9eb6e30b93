// Package testutil holds fixtures shared by tests that need a running rule
// service behind the HTTP API.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/rulesmith/internal/api"
	"github.com/TimurManjosov/rulesmith/internal/service"
	"github.com/TimurManjosov/rulesmith/internal/store"
)

// NewTestService creates a rule service over an in-memory store that
// overwrites on name collisions.
func NewTestService(t *testing.T) (*service.RuleService, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore(store.PolicyOverwrite)
	svc := service.New(memStore, service.Options{Logger: zerolog.Nop()})
	return svc, memStore
}

// NewTestAPI starts an httptest server running the full API router and
// returns its base URL. The server is closed when the test ends.
func NewTestAPI(t *testing.T) (string, *service.RuleService) {
	t.Helper()
	svc, _ := NewTestService(t)
	ts := httptest.NewServer(api.NewServer(svc, api.Options{Logger: zerolog.Nop()}).Router())
	t.Cleanup(ts.Close)
	return ts.URL, svc
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// SeedRules creates each name -> rule text pair through svc and fails the
// test on the first error.
func SeedRules(t *testing.T, svc *service.RuleService, rules map[string]string) {
	t.Helper()
	for name, text := range rules {
		if _, err := svc.Create(context.Background(), name, text); err != nil {
			t.Fatalf("seed rule %q: %v", name, err)
		}
	}
}
