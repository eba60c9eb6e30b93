package rules

import (
	"fmt"
	"time"

	"github.com/TimurManjosov/rulesmith/internal/ast"
	"github.com/TimurManjosov/rulesmith/internal/validation"
)

// Rule is a named, stored rule. A Rule is replaced as a whole and never
// modified in place, so a *Rule handed out by a store is safe to share.
type Rule struct {
	Name           string    `json:"name"`
	Source         string    `json:"source"`
	Root           *ast.Node `json:"ast"`
	AttributeNames []string  `json:"attribute_names"`
	Fingerprint    string    `json:"fingerprint"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// New builds a Rule from a validated name and a parsed tree. The attribute
// names and fingerprint are derived from root.
func New(name, source string, root *ast.Node) (Rule, error) {
	if err := validation.ValidateName(name).Err(); err != nil {
		return Rule{}, err
	}
	if err := root.Validate(); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", name, err)
	}

	// Microsecond precision survives every backend unchanged.
	now := time.Now().UTC().Truncate(time.Microsecond)
	return Rule{
		Name:           name,
		Source:         source,
		Root:           root,
		AttributeNames: ast.AttributeNames(root),
		Fingerprint:    ast.Fingerprint(root),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
