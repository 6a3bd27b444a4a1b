// Package postgres provides the PostgreSQL-backed session registry.
//
// All tables share a single [pgxpool.Pool]. [Migrate] is idempotent
// (CREATE TABLE IF NOT EXISTS) and runs on every start.
//
// Usage:
//
//	reg, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer reg.Close()
//
//	_ = reg.CreateSession(ctx, &registry.Session{OwnerID: "u1", Title: "standup"})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intrascribe/intrascribe/internal/registry"
)

// Compile-time interface check.
var _ registry.Store = (*Store)(nil)

// Store is the PostgreSQL-backed implementation of [registry.Store].
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, and runs [Migrate] to ensure all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("registry store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("registry store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("registry store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("registry store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// DDL — sessions and templates
// ─────────────────────────────────────────────────────────────────────────────

const ddlSessions = `
CREATE TABLE IF NOT EXISTS recording_sessions (
    id               TEXT         PRIMARY KEY,
    owner_id         TEXT         NOT NULL,
    title            TEXT         NOT NULL DEFAULT '',
    language         TEXT         NOT NULL DEFAULT '',
    status           TEXT         NOT NULL DEFAULT 'created',
    template_id      TEXT         NOT NULL DEFAULT '',
    duration_seconds INTEGER      NOT NULL DEFAULT 0,
    metadata         JSONB        NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner
    ON recording_sessions (owner_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_sessions_status
    ON recording_sessions (status);

CREATE TABLE IF NOT EXISTS summary_templates (
    id          TEXT         PRIMARY KEY,
    owner_id    TEXT         NOT NULL DEFAULT '',
    name        TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    is_default  BOOLEAN      NOT NULL DEFAULT FALSE,
    usage_count INTEGER      NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_templates_owner ON summary_templates (owner_id);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — transcripts, audio files, summaries
// ─────────────────────────────────────────────────────────────────────────────

const ddlArtifacts = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL REFERENCES recording_sessions (id) ON DELETE CASCADE,
    content     TEXT         NOT NULL DEFAULT '',
    segments    JSONB        NOT NULL DEFAULT '[]',
    language    TEXT         NOT NULL DEFAULT '',
    word_count  INTEGER      NOT NULL DEFAULT 0,
    model_id    TEXT         NOT NULL DEFAULT '',
    status      TEXT         NOT NULL DEFAULT 'completed',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcriptions_session
    ON transcriptions (session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS audio_files (
    id                TEXT         PRIMARY KEY,
    session_id        TEXT         NOT NULL REFERENCES recording_sessions (id) ON DELETE CASCADE,
    owner_id          TEXT         NOT NULL,
    storage_path      TEXT         NOT NULL,
    public_url        TEXT         NOT NULL DEFAULT '',
    size_bytes        BIGINT       NOT NULL DEFAULT 0,
    duration_seconds  INTEGER      NOT NULL DEFAULT 0,
    format            TEXT         NOT NULL DEFAULT '',
    sample_rate_hz    INTEGER      NOT NULL DEFAULT 0,
    upload_status     TEXT         NOT NULL DEFAULT '',
    processing_status TEXT         NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audio_files_session
    ON audio_files (session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS ai_summaries (
    id               TEXT         PRIMARY KEY,
    session_id       TEXT         NOT NULL REFERENCES recording_sessions (id) ON DELETE CASCADE,
    transcription_id TEXT         NOT NULL DEFAULT '',
    summary          TEXT         NOT NULL,
    key_points       JSONB        NOT NULL DEFAULT '[]',
    model_used       TEXT         NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_summaries_session
    ON ai_summaries (session_id, created_at DESC);
`

// Migrate creates or ensures all required tables exist. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlSessions,
		ddlArtifacts,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("registry migrate: %w", err)
		}
	}
	return nil
}
