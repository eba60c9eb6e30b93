package api

import (
	"net/http"

	"github.com/TimurManjosov/rulesmith/internal/combiner"
	"github.com/TimurManjosov/rulesmith/internal/service"
)

// Request and response bodies of the flat endpoints called by the rule
// builder frontend. Field names are part of that contract.

type createRuleRequest struct {
	Rule string `json:"rule"`
	Name string `json:"name"`
}

type combineRulesRequest struct {
	Rules    []string `json:"rules"`
	Strategy string   `json:"strategy,omitempty"`
	Dedupe   bool     `json:"dedupe,omitempty"`
}

type evaluateRuleRequest struct {
	RuleName string         `json:"rule_name"`
	Data     map[string]any `json:"data"`
}

type evaluateRuleResponse struct {
	Result bool `json:"result"`
}

type checkRuleRequest struct {
	RuleName string `json:"rule_name"`
}

// handleCreateRule handles POST /create_rule and responds with the parsed tree.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	rule, err := s.svc.Create(r.Context(), req.Name, req.Rule)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule.Root)
}

// handleCombineRules handles POST /combine_rules. An empty list yields null.
func (s *Server) handleCombineRules(w http.ResponseWriter, r *http.Request) {
	var req combineRulesRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Rules) == 0 {
		writeJSON(w, http.StatusOK, nil)
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
	writeJSON(w, http.StatusOK, root)
}

// handleEvaluateRule handles POST /evaluate_rule.
func (s *Server) handleEvaluateRule(w http.ResponseWriter, r *http.Request) {
	var req evaluateRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	result, err := s.svc.Evaluate(r.Context(), req.RuleName, req.Data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateRuleResponse{Result: result})
}

// handleCheckRule handles POST /check_rule. Unknown rules yield [].
func (s *Server) handleCheckRule(w http.ResponseWriter, r *http.Request) {
	var req checkRuleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	names, err := s.svc.Check(r.Context(), req.RuleName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// combineOptions reads the optional strategy and dedupe flag of a combine request.
func combineOptions(w http.ResponseWriter, r *http.Request, req combineRulesRequest) (service.CombineOptions, bool) {
	opts := service.CombineOptions{Dedupe: req.Dedupe}
	if req.Strategy == "" {
		return opts, true
	}
	strategy, err := combiner.ParseStrategy(req.Strategy)
	if err != nil {
		ValidationError(w, r, "Validation failed", map[string]string{"strategy": err.Error()})
		return opts, false
	}
	opts.Strategy = strategy
	return opts, true
}
