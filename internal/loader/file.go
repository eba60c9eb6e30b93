// Package loader seeds the rule service from a YAML rules file and, when
// asked, keeps watching the file and reapplies it on change.
//
// File format:
//
//	rules:
//	  - name: senior_sales
//	    rule: age > 30 AND department == 'Sales'
//	  - name: adults
//	    rule: age >= 18
//
// Reloading creates or replaces every rule in the file. Rules that were
// removed from the file stay in the store.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// Entry is one named rule in a rules file.
type Entry struct {
	Name string `yaml:"name" json:"name"`
	Rule string `yaml:"rule" json:"rule"`
}

// File is the decoded rules file.
type File struct {
	Rules []Entry `yaml:"rules" json:"rules"`
}

// ParseFile decodes a rules file. Unknown keys and repeated names are errors.
func ParseFile(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		// an empty document holds no rules
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode rules file: %w", err)
	}

	seen := make(map[string]int, len(f.Rules))
	for i, e := range f.Rules {
		if prev, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("rules file: entry %d repeats name %q from entry %d", i, e.Name, prev)
		}
		seen[e.Name] = i
	}
	return &f, nil
}

// ReadFile reads and decodes the rules file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseFile(data)
}

// Creator stores a rule from its name and text.
type Creator interface {
	Create(ctx context.Context, name, text string) (*rules.Rule, error)
}

// Result summarises one load.
type Result struct {
	Loaded int
	Failed int
}

// Loader applies a rules file to a Creator.
type Loader struct {
	path    string
	creator Creator
	logger  zerolog.Logger
}

// New returns a Loader for the file at path.
func New(path string, creator Creator, logger zerolog.Logger) *Loader {
	return &Loader{
		path:    path,
		creator: creator,
		logger:  logger.With().Str("component", "loader").Str("file", path).Logger(),
	}
}

// Load reads the file and creates every rule in it. An entry that fails does
// not stop the others; all entry failures are returned joined.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	f, err := ReadFile(l.path)
	if err != nil {
		return Result{}, err
	}

	var (
		res  Result
		errs []error
	)
	for _, e := range f.Rules {
		if _, err := l.creator.Create(ctx, e.Name, e.Rule); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("rule %q: %w", e.Name, err))
			l.logger.Warn().Err(err).Str("rule", e.Name).Msg("rule not loaded")
			continue
		}
		res.Loaded++
	}

	l.logger.Info().Int("loaded", res.Loaded).Int("failed", res.Failed).Msg("rules file applied")
	return res, errors.Join(errs...)
}
