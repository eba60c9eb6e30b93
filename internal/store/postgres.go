package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TimurManjosov/rulesmith/internal/db"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

const (
	pgSelectColumns = `name, source, ast, attribute_names, fingerprint, created_at, updated_at`

	pgUpsert = `
INSERT INTO rules (name, source, ast, attribute_names, fingerprint, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO UPDATE SET
	source = EXCLUDED.source,
	ast = EXCLUDED.ast,
	attribute_names = EXCLUDED.attribute_names,
	fingerprint = EXCLUDED.fingerprint,
	updated_at = EXCLUDED.updated_at`

	pgInsertOnly = `
INSERT INTO rules (name, source, ast, attribute_names, fingerprint, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name) DO NOTHING`
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Each Put is a single statement, so concurrent writers never interleave
// within one rule.
type PostgresStore struct {
	pool   *pgxpool.Pool
	policy Policy
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool, policy Policy) *PostgresStore {
	if policy == "" {
		policy = PolicyOverwrite
	}
	return &PostgresStore{pool: pool, policy: policy}
}

// EnsureSchema creates the rules table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, db.PostgresSchema); err != nil {
		return fmt.Errorf("create postgres schema: %w", err)
	}
	return nil
}

// Put creates or replaces a rule depending on the store policy.
func (p *PostgresStore) Put(ctx context.Context, r rules.Rule) error {
	rw, err := encodeRule(r)
	if err != nil {
		return err
	}

	query := pgUpsert
	if p.policy == PolicyReject {
		query = pgInsertOnly
	}
	tag, err := p.pool.Exec(ctx, query,
		rw.Name, rw.Source, rw.AST, rw.AttributeNames, rw.Fingerprint, rw.CreatedAt, rw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put rule %q: %w", r.Name, err)
	}
	if p.policy == PolicyReject && tag.RowsAffected() == 0 {
		return duplicate(r.Name)
	}
	return nil
}

// Get retrieves a single rule by name.
func (p *PostgresStore) Get(ctx context.Context, name string) (*rules.Rule, error) {
	var rw row
	err := p.pool.QueryRow(ctx, `SELECT `+pgSelectColumns+` FROM rules WHERE name = $1`, name).
		Scan(&rw.Name, &rw.Source, &rw.AST, &rw.AttributeNames, &rw.Fingerprint, &rw.CreatedAt, &rw.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("get rule %q: %w", name, err)
	}

	r, err := decodeRule(rw)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Exists reports whether a rule is stored under name.
func (p *PostgresStore) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rules WHERE name = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check rule %q: %w", name, err)
	}
	return exists, nil
}

// ListAttributeNames returns the attribute names of the named rule.
func (p *PostgresStore) ListAttributeNames(ctx context.Context, name string) ([]string, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT attribute_names FROM rules WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("list attributes of %q: %w", name, err)
	}
	return decodeNames(name, data)
}

// List returns all rules sorted by name.
func (p *PostgresStore) List(ctx context.Context) ([]rules.Rule, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+pgSelectColumns+` FROM rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	result := make([]rules.Rule, 0)
	for rows.Next() {
		var rw row
		if err := rows.Scan(&rw.Name, &rw.Source, &rw.AST, &rw.AttributeNames, &rw.Fingerprint, &rw.CreatedAt, &rw.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r, err := decodeRule(rw)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return result, nil
}

// Count returns the number of stored rules.
func (p *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

// Delete removes a rule from the database.
func (p *PostgresStore) Delete(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM rules WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete rule %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(name)
	}
	return nil
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
