package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// Sentinel errors shared by every Store implementation.
var (
	ErrNotFound      = errors.New("rule not found")
	ErrDuplicateName = errors.New("rule name already exists")
)

// Policy decides what Put does when a rule with the same name exists.
type Policy string

const (
	// PolicyOverwrite replaces the existing rule (last writer wins).
	PolicyOverwrite Policy = "overwrite"
	// PolicyReject fails with ErrDuplicateName.
	PolicyReject Policy = "reject"
)

// ParsePolicy converts a config value into a Policy. The empty string maps
// to PolicyOverwrite.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyOverwrite:
		return PolicyOverwrite, nil
	case PolicyReject:
		return PolicyReject, nil
	}
	return "", fmt.Errorf("unknown overwrite policy %q (want overwrite or reject)", s)
}

// Store defines the interface for rule persistence.
// Implementations must be safe for concurrent use. A Put is atomic per name:
// readers observe either the previous rule or the new one, never a mix.
type Store interface {
	// Put stores r under r.Name. Under PolicyReject an existing name fails
	// with ErrDuplicateName; under PolicyOverwrite it is replaced and keeps
	// its original CreatedAt.
	Put(ctx context.Context, r rules.Rule) error

	// Get returns the rule stored under name, or ErrNotFound.
	Get(ctx context.Context, name string) (*rules.Rule, error)

	// Exists reports whether a rule is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// ListAttributeNames returns the attribute names of the named rule in
	// first-encounter order, or ErrNotFound.
	ListAttributeNames(ctx context.Context, name string) ([]string, error)

	// List returns every stored rule sorted by name.
	List(ctx context.Context) ([]rules.Rule, error)

	// Count returns the number of stored rules.
	Count(ctx context.Context) (int, error)

	// Delete removes the named rule, or returns ErrNotFound.
	Delete(ctx context.Context, name string) error

	// Close releases any resources held by the store.
	Close() error
}

func notFound(name string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, name)
}

func duplicate(name string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateName, name)
}
