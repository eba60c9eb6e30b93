package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/TimurManjosov/rulesmith/internal/rules"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
type MemoryStore struct {
	mu     sync.RWMutex
	policy Policy
	rules  map[string]rules.Rule // name -> Rule
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(policy Policy) *MemoryStore {
	if policy == "" {
		policy = PolicyOverwrite
	}
	return &MemoryStore{
		policy: policy,
		rules:  make(map[string]rules.Rule),
	}
}

// Put stores a rule, honouring the overwrite policy.
func (m *MemoryStore) Put(ctx context.Context, r rules.Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.AttributeNames = slices.Clone(r.AttributeNames)

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, exists := m.rules[r.Name]; exists {
		if m.policy == PolicyReject {
			return duplicate(r.Name)
		}
		r.CreatedAt = prev.CreatedAt
	}
	m.rules[r.Name] = r
	return nil
}

// Get retrieves a single rule by name.
func (m *MemoryStore) Get(ctx context.Context, name string) (*rules.Rule, error) {
	m.mu.RLock()
	r, exists := m.rules[name]
	m.mu.RUnlock()

	if !exists {
		return nil, notFound(name)
	}
	r.AttributeNames = slices.Clone(r.AttributeNames)
	return &r, nil
}

// Exists reports whether a rule is stored under name.
func (m *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.rules[name]
	return exists, nil
}

// ListAttributeNames returns the attribute names of the named rule.
func (m *MemoryStore) ListAttributeNames(ctx context.Context, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.rules[name]
	if !exists {
		return nil, notFound(name)
	}
	names := make([]string, len(r.AttributeNames))
	copy(names, r.AttributeNames)
	return names, nil
}

// List returns all rules sorted by name.
func (m *MemoryStore) List(ctx context.Context) ([]rules.Rule, error) {
	m.mu.RLock()
	result := make([]rules.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		r.AttributeNames = slices.Clone(r.AttributeNames)
		result = append(result, r)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Count returns the number of stored rules.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules), nil
}

// Delete removes a rule from memory.
func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[name]; !exists {
		return notFound(name)
	}
	delete(m.rules, name)
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
