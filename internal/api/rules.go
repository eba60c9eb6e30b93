package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// postRuleRequest is the body of POST /v1/rules.
type postRuleRequest struct {
	Name string `json:"name"`
	Rule string `json:"rule"`
}

type listRulesResponse struct {
	Rules []rules.Rule `json:"rules"`
	Count int          `json:"count"`
}

type attributesResponse struct {
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
}

// treeResponse describes a tree produced by parse or combine.
type treeResponse struct {
	AST            *ast.Node `json:"ast"`
	Text           string    `json:"text"`
	AttributeNames []string  `json:"attribute_names"`
	Fingerprint    string    `json:"fingerprint"`
}

func newTreeResponse(root *ast.Node) treeResponse {
	return treeResponse{
		AST:            root,
		Text:           root.String(),
		AttributeNames: ast.AttributeNames(root),
		Fingerprint:    ast.Fingerprint(root),
	}
}

type parseRequest struct {
	Rule string `json:"rule"`
}

type evaluateRequest struct {
	Data map[string]any `json:"data"`
}

type evaluateResponse struct {
	Rule   string `json:"rule"`
	Result bool   `json:"result"`
}

type batchRequest struct {
	Records []map[string]any `json:"records"`
}

type batchItem struct {
	Index  int         `json:"index"`
	Result bool        `json:"result"`
	Error  *batchError `json:"error,omitempty"`
}

type batchError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type batchResponse struct {
	Rule    string      `json:"rule"`
	Results []batchItem `json:"results"`
	Matched int         `json:"matched"`
	Failed  int         `json:"failed"`
}

// handlePostRule handles POST /v1/rules
func (s *Server) handlePostRule(w http.ResponseWriter, r *http.Request) {
	var req postRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	rule, err := s.svc.Create(r.Context(), req.Name, req.Rule)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// handleListRules handles GET /v1/rules
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []rules.Rule{}
	}
	writeJSON(w, http.StatusOK, listRulesResponse{Rules: list, Count: len(list)})
}

// handleGetRule handles GET /v1/rules/{name}
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.svc.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRule handles DELETE /v1/rules/{name}
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetAttributes handles GET /v1/rules/{name}/attributes. Unlike
// /check_rule, an unknown rule is a 404.
func (s *Server) handleGetAttributes(w http.ResponseWriter, r *http.Request) {
	rule, err := s.svc.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attributesResponse{Name: rule.Name, Attributes: rule.AttributeNames})
}

// handlePostEvaluate handles POST /v1/rules/{name}/evaluate
func (s *Server) handlePostEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "name")
	result, err := s.svc.Evaluate(r.Context(), name, req.Data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Rule: name, Result: result})
}

// handlePostEvaluateBatch handles POST /v1/rules/{name}/evaluate/batch.
// Records that fail carry their own error; the request still succeeds.
func (s *Server) handlePostEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "name")
	results, err := s.svc.EvaluateBatch(r.Context(), name, req.Records)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := batchResponse{Rule: name, Results: make([]batchItem, len(results))}
	for i, res := range results {
		item := batchItem{Index: res.Index, Result: res.Result}
		if res.Err != nil {
			_, e := classify(res.Err)
			item.Error = &batchError{Code: e.Code, Message: res.Err.Error()}
			resp.Failed++
		} else if res.Result {
			resp.Matched++
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePostCombine handles POST /v1/rules/combine. Unlike /combine_rules,
// an empty list is an error.
func (s *Server) handlePostCombine(w http.ResponseWriter, r *http.Request) {
	var req combineRulesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	opts, ok := combineOptions(w, r, req)
	if !ok {
		return
	}
	root, err := s.svc.Combine(r.Context(), req.Rules, opts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTreeResponse(root))
}

// handlePostParse handles POST /v1/rules/parse. Nothing is stored.
func (s *Server) handlePostParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	root, err := s.svc.Parse(r.Context(), req.Rule)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTreeResponse(root))
}
