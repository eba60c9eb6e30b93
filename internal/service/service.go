// Package service implements the rule operations exposed by the API and the
// rules file loader: create, combine, evaluate and check, plus listing and
// deletion.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/audit"
	"github.com/TimurManjosov/rulesmith/internal/combiner"
	"github.com/TimurManjosov/rulesmith/internal/evaluator"
	"github.com/TimurManjosov/rulesmith/internal/parser"
	"github.com/TimurManjosov/rulesmith/internal/rules"
	"github.com/TimurManjosov/rulesmith/internal/store"
	"github.com/TimurManjosov/rulesmith/internal/telemetry"
	"github.com/TimurManjosov/rulesmith/internal/validation"
)

// Options configures a RuleService. Zero values fall back to defaults.
type Options struct {
	Strategy      combiner.Strategy // default combine strategy
	MaxRuleLength int
	BatchWorkers  int
	Metrics       *telemetry.Metrics
	Audit         *audit.Service
	Logger        zerolog.Logger
}

// CombineOptions tunes a single Combine call.
type CombineOptions struct {
	Strategy combiner.Strategy // empty uses the service default
	Dedupe   bool
}

// RuleService coordinates parsing, storage, combination and evaluation.
// It is safe for concurrent use; the store is its only shared state.
type RuleService struct {
	store         store.Store
	strategy      combiner.Strategy
	maxRuleLength int
	batchWorkers  int
	metrics       *telemetry.Metrics
	audit         *audit.Service
	logger        zerolog.Logger
}

// New creates a RuleService backed by st.
func New(st store.Store, opts Options) *RuleService {
	if opts.Strategy == "" {
		opts.Strategy = combiner.StrategyAll
	}
	if opts.MaxRuleLength <= 0 {
		opts.MaxRuleLength = validation.DefaultMaxRuleLength
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = evaluator.DefaultBatchWorkers
	}
	return &RuleService{
		store:         st,
		strategy:      opts.Strategy,
		maxRuleLength: opts.MaxRuleLength,
		batchWorkers:  opts.BatchWorkers,
		metrics:       opts.Metrics,
		audit:         opts.Audit,
		logger:        opts.Logger.With().Str("component", "service").Logger(),
	}
}

// Parse parses text without storing it.
func (s *RuleService) Parse(ctx context.Context, text string) (*ast.Node, error) {
	if err := validation.ValidateRuleText(text, s.maxRuleLength).Err(); err != nil {
		return nil, err
	}
	root, err := parser.Parse(text)
	s.metrics.ObserveParse(err)
	return root, err
}

// Create parses text and stores it under name. Nothing is stored unless
// every step before the store write succeeds.
func (s *RuleService) Create(ctx context.Context, name, text string) (*rules.Rule, error) {
	if err := validation.ValidateName(name).Err(); err != nil {
		return nil, err
	}
	root, err := s.Parse(ctx, text)
	if err != nil {
		return nil, err
	}
	r, err := rules.New(name, text, root)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(ctx, audit.ActionCreated, name)
	event.Fingerprint = r.Fingerprint
	if prev, err := s.store.Get(ctx, name); err == nil {
		event.Action = audit.ActionReplaced
		event.PreviousFingerprint = prev.Fingerprint
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if err := s.store.Put(ctx, r); err != nil {
		event.Status = audit.StatusFailure
		event.ErrorMessage = err.Error()
		s.audit.Log(event)
		return nil, err
	}
	s.audit.Log(event)
	s.refreshStored(ctx)

	s.logger.Debug().Str("rule", name).Str("action", event.Action).Str("fingerprint", r.Fingerprint).Msg("rule stored")
	return &r, nil
}

// Combine merges the given inputs into one tree. Each input that is a valid
// rule name of a stored rule resolves to that rule's tree; any other input is
// parsed as rule text. An empty input list fails with combiner.ErrEmptyInput.
func (s *RuleService) Combine(ctx context.Context, inputs []string, opts CombineOptions) (*ast.Node, error) {
	if err := validation.ValidateCombineInputs(inputs, s.maxRuleLength).Err(); err != nil {
		return nil, err
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = s.strategy
	}

	roots := make([]*ast.Node, 0, len(inputs))
	for i, in := range inputs {
		root, err := s.resolve(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		roots = append(roots, root)
	}

	copts := []combiner.Option{combiner.WithStrategy(strategy)}
	if opts.Dedupe {
		copts = append(copts, combiner.WithDedupe())
	}
	root, err := combiner.Combine(roots, copts...)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCombine(string(strategy))
	return root, nil
}

func (s *RuleService) resolve(ctx context.Context, input string) (*ast.Node, error) {
	if validation.IsName(input) {
		r, err := s.store.Get(ctx, input)
		if err == nil {
			return r.Root, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return s.Parse(ctx, input)
}

// Evaluate runs the named rule against data.
func (s *RuleService) Evaluate(ctx context.Context, name string, data map[string]any) (bool, error) {
	r, err := s.store.Get(ctx, name)
	if err != nil {
		return false, err
	}
	rec, err := evaluator.RecordFromMap(data)
	if err != nil {
		s.metrics.ObserveEvaluation(false, err)
		return false, err
	}
	result, err := evaluator.Evaluate(r.Root, rec)
	s.metrics.ObserveEvaluation(result, err)
	return result, err
}

// EvaluateBatch runs the named rule against every record concurrently.
// Per-record failures are reported in the results, not as the returned error.
func (s *RuleService) EvaluateBatch(ctx context.Context, name string, data []map[string]any) ([]evaluator.BatchResult, error) {
	if err := validation.ValidateBatchSize(len(data)).Err(); err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	records := make([]evaluator.Record, len(data))
	convErrs := make([]error, len(data))
	for i, d := range data {
		records[i], convErrs[i] = evaluator.RecordFromMap(d)
	}

	results := evaluator.EvaluateBatch(ctx, r.Root, records, s.batchWorkers)
	for i := range results {
		if convErrs[i] != nil {
			results[i].Result, results[i].Err = false, convErrs[i]
		}
		s.metrics.ObserveEvaluation(results[i].Result, results[i].Err)
	}
	return results, nil
}

// Check returns the attribute names referenced by the named rule. An unknown
// rule yields an empty list, not an error.
func (s *RuleService) Check(ctx context.Context, name string) ([]string, error) {
	names, err := s.store.ListAttributeNames(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Get returns the named rule.
func (s *RuleService) Get(ctx context.Context, name string) (*rules.Rule, error) {
	return s.store.Get(ctx, name)
}

// List returns every stored rule sorted by name.
func (s *RuleService) List(ctx context.Context) ([]rules.Rule, error) {
	return s.store.List(ctx)
}

// Delete removes the named rule.
func (s *RuleService) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.audit.Log(audit.NewEvent(ctx, audit.ActionDeleted, name))
	s.refreshStored(ctx)

	s.logger.Debug().Str("rule", name).Msg("rule deleted")
	return nil
}

func (s *RuleService) refreshStored(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to count stored rules")
		return
	}
	s.metrics.SetStored(n)
}

// RefreshMetrics updates store-derived gauges, e.g. after startup loading.
func (s *RuleService) RefreshMetrics(ctx context.Context) {
	s.refreshStored(ctx)
}
