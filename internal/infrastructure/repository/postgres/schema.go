package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the tables all services share. Runs at startup from
// both the api and the indexer, so DDL is serialized behind an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS parts (
	part_id TEXT PRIMARY KEY,
	mpn_id TEXT,
	part_name TEXT NOT NULL,
	part_price TEXT,
	brand TEXT,
	appliance_types TEXT,
	symptoms TEXT,
	replace_parts TEXT,
	install_difficulty TEXT,
	install_time TEXT,
	availability TEXT,
	install_video_url TEXT,
	product_url TEXT
);

CREATE INDEX IF NOT EXISTS idx_parts_mpn_id ON parts(mpn_id);
CREATE INDEX IF NOT EXISTS idx_parts_brand ON parts(brand);

CREATE TABLE IF NOT EXISTS repairs (
	repair_id TEXT PRIMARY KEY,
	product TEXT NOT NULL,
	symptom TEXT NOT NULL,
	description TEXT,
	percentage TEXT,
	parts TEXT,
	difficulty TEXT,
	urls TEXT
);

CREATE INDEX IF NOT EXISTS idx_repairs_product ON repairs(product);

CREATE TABLE IF NOT EXISTS blogs (
	blog_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	url TEXT
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	category TEXT NOT NULL,
	url TEXT,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	turn_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS session_turns (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	idx INTEGER NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	entities JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, idx)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
