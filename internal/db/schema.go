package db

// PostgresSchema creates the rules table. Statements are idempotent.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS rules (
	name            TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	ast             JSONB NOT NULL,
	attribute_names JSONB NOT NULL DEFAULT '[]'::jsonb,
	fingerprint     TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rules_fingerprint ON rules (fingerprint);
`

// SQLiteSchema is the SQLite rendition of PostgresSchema. JSON columns are
// stored as TEXT and timestamps as Unix nanoseconds.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS rules (
	name            TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	ast             TEXT NOT NULL,
	attribute_names TEXT NOT NULL DEFAULT '[]',
	fingerprint     TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_fingerprint ON rules (fingerprint);
`
