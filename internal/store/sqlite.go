package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TimurManjosov/rulesmith/internal/db"
	"github.com/TimurManjosov/rulesmith/internal/rules"
)

const (
	sqliteSelectColumns = `name, source, ast, attribute_names, fingerprint, created_at, updated_at`

	sqliteUpsert = `
INSERT INTO rules (name, source, ast, attribute_names, fingerprint, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
	source = excluded.source,
	ast = excluded.ast,
	attribute_names = excluded.attribute_names,
	fingerprint = excluded.fingerprint,
	updated_at = excluded.updated_at`

	sqliteInsertOnly = `
INSERT INTO rules (name, source, ast, attribute_names, fingerprint, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO NOTHING`
)

// SQLiteStore persists rules in a local SQLite file. It suits single-instance
// deployments that need rules to survive restarts without a database server.
type SQLiteStore struct {
	db     *sql.DB
	policy Policy
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(ctx context.Context, path string, policy Policy) (*SQLiteStore, error) {
	sqlDB, err := db.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.ExecContext(ctx, db.SQLiteSchema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if policy == "" {
		policy = PolicyOverwrite
	}
	return &SQLiteStore{db: sqlDB, policy: policy}, nil
}

// Put creates or replaces a rule depending on the store policy.
func (s *SQLiteStore) Put(ctx context.Context, r rules.Rule) error {
	rw, err := encodeRule(r)
	if err != nil {
		return err
	}

	query := sqliteUpsert
	if s.policy == PolicyReject {
		query = sqliteInsertOnly
	}
	res, err := s.db.ExecContext(ctx, query,
		rw.Name, rw.Source, string(rw.AST), string(rw.AttributeNames), rw.Fingerprint,
		rw.CreatedAt.UnixNano(), rw.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put rule %q: %w", r.Name, err)
	}
	if s.policy == PolicyReject {
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("put rule %q: %w", r.Name, err)
		}
		if n == 0 {
			return duplicate(r.Name)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRule(sc rowScanner) (rules.Rule, error) {
	var (
		rw               row
		tree, attrs      string
		created, updated int64
	)
	if err := sc.Scan(&rw.Name, &rw.Source, &tree, &attrs, &rw.Fingerprint, &created, &updated); err != nil {
		return rules.Rule{}, err
	}
	rw.AST = []byte(tree)
	rw.AttributeNames = []byte(attrs)
	rw.CreatedAt = time.Unix(0, created)
	rw.UpdatedAt = time.Unix(0, updated)
	return decodeRule(rw)
}

// Get retrieves a single rule by name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*rules.Rule, error) {
	r, err := scanSQLiteRule(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSelectColumns+` FROM rules WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("get rule %q: %w", name, err)
	}
	return &r, nil
}

// Exists reports whether a rule is stored under name.
func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM rules WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check rule %q: %w", name, err)
	}
	return n > 0, nil
}

// ListAttributeNames returns the attribute names of the named rule.
func (s *SQLiteStore) ListAttributeNames(ctx context.Context, name string) ([]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT attribute_names FROM rules WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(name)
		}
		return nil, fmt.Errorf("list attributes of %q: %w", name, err)
	}
	return decodeNames(name, []byte(data))
}

// List returns all rules sorted by name.
func (s *SQLiteStore) List(ctx context.Context) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteSelectColumns+` FROM rules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	result := make([]rules.Rule, 0)
	for rows.Next() {
		r, err := scanSQLiteRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return result, nil
}

// Count returns the number of stored rules.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

// Delete removes a rule from the database.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete rule %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %q: %w", name, err)
	}
	if n == 0 {
		return notFound(name)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
