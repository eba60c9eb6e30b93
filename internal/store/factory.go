package store

import (
	"context"
	"fmt"

	mydb "github.com/TimurManjosov/rulesmith/internal/db"
)

// Options selects and configures a Store backend.
type Options struct {
	Type       string // memory, postgres or sqlite
	DSN        string // postgres only
	SQLitePath string // sqlite only
	Policy     Policy
}

// NewStore creates a new store based on opts.Type.
// Supported types: "memory", "postgres", "sqlite"
func NewStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Type {
	case "memory":
		return NewMemoryStore(opts.Policy), nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		s := NewPostgresStore(pool, opts.Policy)
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		return NewSQLiteStore(ctx, opts.SQLitePath, opts.Policy)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", opts.Type)
	}
}
