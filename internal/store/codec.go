package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// row is the column layout shared by the SQL backends.
type row struct {
	Name           string
	Source         string
	AST            []byte
	AttributeNames []byte
	Fingerprint    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func encodeRule(r rules.Rule) (row, error) {
	tree, err := json.Marshal(r.Root)
	if err != nil {
		return row{}, fmt.Errorf("encode ast of %q: %w", r.Name, err)
	}
	names := r.AttributeNames
	if names == nil {
		names = []string{}
	}
	attrs, err := json.Marshal(names)
	if err != nil {
		return row{}, fmt.Errorf("encode attribute names of %q: %w", r.Name, err)
	}
	return row{
		Name:           r.Name,
		Source:         r.Source,
		AST:            tree,
		AttributeNames: attrs,
		Fingerprint:    r.Fingerprint,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func decodeRule(rw row) (rules.Rule, error) {
	var root ast.Node
	if err := json.Unmarshal(rw.AST, &root); err != nil {
		return rules.Rule{}, fmt.Errorf("decode ast of %q: %w", rw.Name, err)
	}
	names, err := decodeNames(rw.Name, rw.AttributeNames)
	if err != nil {
		return rules.Rule{}, err
	}
	return rules.Rule{
		Name:           rw.Name,
		Source:         rw.Source,
		Root:           &root,
		AttributeNames: names,
		Fingerprint:    rw.Fingerprint,
		CreatedAt:      rw.CreatedAt.UTC(),
		UpdatedAt:      rw.UpdatedAt.UTC(),
	}, nil
}

func decodeNames(name string, data []byte) ([]string, error) {
	names := []string{}
	if len(data) == 0 {
		return names, nil
	}
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode attribute names of %q: %w", name, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
