package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID int64 = 2026101501

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	award_year TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'in_progress',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS application_steps (
	application_id TEXT NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
	step TEXT NOT NULL,
	position INT NOT NULL,
	completed_at TIMESTAMPTZ,
	PRIMARY KEY (application_id, step)
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	file_name TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	sha256 TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	declared_type TEXT NOT NULL DEFAULT '',
	classified_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_user_status ON documents(user_id, status) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS ocr_results (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	document_type TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	overall_confidence DOUBLE PRECISION NOT NULL,
	fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	status TEXT NOT NULL,
	engine TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_verifications (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	verification_type TEXT NOT NULL,
	status TEXT NOT NULL,
	overall_score DOUBLE PRECISION NOT NULL,
	checks JSONB NOT NULL DEFAULT '[]'::jsonb,
	issues JSONB NOT NULL DEFAULT '[]'::jsonb,
	requires_manual_review BOOLEAN NOT NULL,
	reviewed_by TEXT NOT NULL DEFAULT '',
	review_notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_document_verifications_document ON document_verifications(document_id, created_at DESC);

CREATE TABLE IF NOT EXISTS prepopulations (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	form_type TEXT NOT NULL,
	result JSONB NOT NULL,
	overall_confidence DOUBLE PRECISION NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, form_type)
);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events(entity_type, entity_id, created_at DESC);
`
