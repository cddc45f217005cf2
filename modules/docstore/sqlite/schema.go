package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	// seq aliases rowid and fixes insertion order; upserts keep it.
	`CREATE TABLE IF NOT EXISTS documents (
		seq           INTEGER PRIMARY KEY AUTOINCREMENT,
		collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		id            TEXT NOT NULL,
		content       TEXT NOT NULL,
		metadata      TEXT NOT NULL DEFAULT '{}',
		UNIQUE (collection_id, id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection_id, seq)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		content,
		content=documents,
		content_rowid=seq
	)`,

	`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
		INSERT INTO documents_fts(rowid, content) VALUES (new.seq, new.content);
	END`,

	`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, content) VALUES ('delete', old.seq, old.content);
	END`,

	`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, content) VALUES ('delete', old.seq, old.content);
		INSERT INTO documents_fts(rowid, content) VALUES (new.seq, new.content);
	END`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
