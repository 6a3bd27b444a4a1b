package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/registry"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────────────────

// CreateSession implements [registry.Store].
func (s *Store) CreateSession(ctx context.Context, sess *registry.Session) error {
	if sess.OwnerID == "" {
		return fmt.Errorf("registry store: create session: owner required: %w", fault.ErrInvalidInput)
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.Status == "" {
		sess.Status = registry.StatusCreated
	}
	if !sess.Status.IsValid() {
		return fmt.Errorf("registry store: create session: unknown status %q: %w", sess.Status, fault.ErrInvalidInput)
	}
	if sess.Metadata == nil {
		sess.Metadata = map[string]any{}
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	const q = `
INSERT INTO recording_sessions
    (id, owner_id, title, language, status, template_id, duration_seconds, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q,
		sess.ID, sess.OwnerID, sess.Title, sess.Language, string(sess.Status),
		sess.TemplateID, sess.DurationSeconds, sess.Metadata, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("registry store: create session: %w", err)
	}
	return nil
}

const sessionColumns = `
    id, owner_id, title, language, status, template_id, duration_seconds,
    metadata, created_at, updated_at, ended_at`

func scanSession(row pgx.Row) (*registry.Session, error) {
	var (
		sess   registry.Session
		status string
	)
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Title, &sess.Language, &status,
		&sess.TemplateID, &sess.DurationSeconds, &sess.Metadata,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = registry.Status(status)
	return &sess, nil
}

// SessionByID implements [registry.Store].
func (s *Store) SessionByID(ctx context.Context, id, owner string) (*registry.Session, error) {
	const q = `
SELECT` + sessionColumns + `
FROM recording_sessions
WHERE id = $1 AND ($2 = '' OR owner_id = $2)`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registry store: session %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry store: get session: %w", err)
	}
	return sess, nil
}

// SessionsByOwner implements [registry.Store].
func (s *Store) SessionsByOwner(ctx context.Context, owner string, limit, offset int) ([]*registry.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT` + sessionColumns + `
FROM recording_sessions
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, q, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("registry store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*registry.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("registry store: scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// UpdateSession implements [registry.Store]. The current row is locked while
// the status transition is validated so concurrent updates serialize.
func (s *Store) UpdateSession(ctx context.Context, id string, upd registry.Update, owner string) (*registry.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry store: update session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockQ = `
SELECT` + sessionColumns + `
FROM recording_sessions
WHERE id = $1 AND ($2 = '' OR owner_id = $2)
FOR UPDATE`

	sess, err := scanSession(tx.QueryRow(ctx, lockQ, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registry store: session %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry store: update session: lock: %w", err)
	}

	if upd.Status != nil {
		if err := registry.ValidateTransition(sess.Status, *upd.Status, upd.ViaPipeline); err != nil {
			return nil, err
		}
		sess.Status = *upd.Status
	}
	if upd.Title != nil {
		sess.Title = *upd.Title
	}
	if upd.TemplateID != nil {
		sess.TemplateID = *upd.TemplateID
	}
	if upd.DurationSeconds != nil {
		sess.DurationSeconds = *upd.DurationSeconds
	}
	if upd.EndedAt != nil {
		sess.EndedAt = upd.EndedAt
	}
	if upd.Metadata != nil {
		if sess.Metadata == nil {
			sess.Metadata = map[string]any{}
		}
		for k, v := range upd.Metadata {
			sess.Metadata[k] = v
		}
	}
	sess.UpdatedAt = time.Now().UTC()

	const writeQ = `
UPDATE recording_sessions
SET title = $2, status = $3, template_id = $4, duration_seconds = $5,
    metadata = $6, updated_at = $7, ended_at = $8
WHERE id = $1`

	_, err = tx.Exec(ctx, writeQ, sess.ID, sess.Title, string(sess.Status),
		sess.TemplateID, sess.DurationSeconds, sess.Metadata, sess.UpdatedAt, sess.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("registry store: update session: write: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("registry store: update session: commit: %w", err)
	}
	return sess, nil
}

// DeleteSession implements [registry.Store]. Child rows go with the session
// via ON DELETE CASCADE.
func (s *Store) DeleteSession(ctx context.Context, id, owner string) error {
	const q = `
DELETE FROM recording_sessions
WHERE id = $1 AND ($2 = '' OR owner_id = $2)`

	tag, err := s.pool.Exec(ctx, q, id, owner)
	if err != nil {
		return fmt.Errorf("registry store: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registry store: session %s: %w", id, fault.ErrNotFound)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcripts
// ─────────────────────────────────────────────────────────────────────────────

// SaveTranscript implements [registry.Store].
func (s *Store) SaveTranscript(ctx context.Context, t *registry.Transcript) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = "completed"
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	const q = `
INSERT INTO transcriptions
    (id, session_id, content, segments, language, word_count, model_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, q, t.ID, t.SessionID, t.Content, t.Segments,
		t.Language, t.WordCount, t.ModelID, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("registry store: save transcript: %w", err)
	}
	return nil
}

// TranscriptsBySession implements [registry.Store].
func (s *Store) TranscriptsBySession(ctx context.Context, sessionID string) ([]*registry.Transcript, error) {
	const q = `
SELECT id, session_id, content, segments, language, word_count, model_id, status, created_at, updated_at
FROM transcriptions
WHERE session_id = $1
ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("registry store: list transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []*registry.Transcript
	for rows.Next() {
		var t registry.Transcript
		err := rows.Scan(&t.ID, &t.SessionID, &t.Content, &t.Segments, &t.Language,
			&t.WordCount, &t.ModelID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("registry store: scan transcript: %w", err)
		}
		transcripts = append(transcripts, &t)
	}
	return transcripts, rows.Err()
}

// ReplaceTranscript implements [registry.Store]. The newest transcript of the
// session is overwritten in place; when none exists the transcript is
// inserted instead.
func (s *Store) ReplaceTranscript(ctx context.Context, t *registry.Transcript) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("registry store: replace transcript: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const newestQ = `
SELECT id FROM transcriptions
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE`

	var newestID string
	err = tx.QueryRow(ctx, newestQ, t.SessionID).Scan(&newestID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Status == "" {
			t.Status = "completed"
		}
		now := time.Now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now

		const insertQ = `
INSERT INTO transcriptions
    (id, session_id, content, segments, language, word_count, model_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		if _, err := tx.Exec(ctx, insertQ, t.ID, t.SessionID, t.Content, t.Segments,
			t.Language, t.WordCount, t.ModelID, t.Status, t.CreatedAt, t.UpdatedAt); err != nil {
			return fmt.Errorf("registry store: replace transcript: insert: %w", err)
		}
	case err != nil:
		return fmt.Errorf("registry store: replace transcript: find newest: %w", err)
	default:
		t.ID = newestID
		t.UpdatedAt = time.Now().UTC()

		const updateQ = `
UPDATE transcriptions
SET content = $2, segments = $3, language = $4, word_count = $5,
    model_id = $6, status = 'completed', updated_at = $7
WHERE id = $1`

		if _, err := tx.Exec(ctx, updateQ, newestID, t.Content, t.Segments,
			t.Language, t.WordCount, t.ModelID, t.UpdatedAt); err != nil {
			return fmt.Errorf("registry store: replace transcript: update: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("registry store: replace transcript: commit: %w", err)
	}
	return nil
}

// DeleteTranscripts implements [registry.Store].
func (s *Store) DeleteTranscripts(ctx context.Context, sessionID string) error {
	const q = `DELETE FROM transcriptions WHERE session_id = $1`
	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("registry store: delete transcripts: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Audio files and summaries
// ─────────────────────────────────────────────────────────────────────────────

// SaveAudioFile implements [registry.Store].
func (s *Store) SaveAudioFile(ctx context.Context, f *registry.AudioFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()

	const q = `
INSERT INTO audio_files
    (id, session_id, owner_id, storage_path, public_url, size_bytes,
     duration_seconds, format, sample_rate_hz, upload_status, processing_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, q, f.ID, f.SessionID, f.OwnerID, f.StoragePath,
		f.PublicURL, f.SizeBytes, f.DurationSeconds, f.Format, f.SampleRateHz,
		f.UploadStatus, f.ProcessingStatus, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("registry store: save audio file: %w", err)
	}
	return nil
}

// AudioFilesBySession implements [registry.Store].
func (s *Store) AudioFilesBySession(ctx context.Context, sessionID string) ([]*registry.AudioFile, error) {
	const q = `
SELECT id, session_id, owner_id, storage_path, public_url, size_bytes,
       duration_seconds, format, sample_rate_hz, upload_status, processing_status, created_at
FROM audio_files
WHERE session_id = $1
ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("registry store: list audio files: %w", err)
	}
	defer rows.Close()

	var files []*registry.AudioFile
	for rows.Next() {
		var f registry.AudioFile
		err := rows.Scan(&f.ID, &f.SessionID, &f.OwnerID, &f.StoragePath, &f.PublicURL,
			&f.SizeBytes, &f.DurationSeconds, &f.Format, &f.SampleRateHz,
			&f.UploadStatus, &f.ProcessingStatus, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("registry store: scan audio file: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// SaveSummary implements [registry.Store].
func (s *Store) SaveSummary(ctx context.Context, sum *registry.AISummary) error {
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	sum.CreatedAt = time.Now().UTC()
	if sum.KeyPoints == nil {
		sum.KeyPoints = []string{}
	}

	const q = `
INSERT INTO ai_summaries
    (id, session_id, transcription_id, summary, key_points, model_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, q, sum.ID, sum.SessionID, sum.TranscriptionID,
		sum.Summary, sum.KeyPoints, sum.ModelUsed, sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("registry store: save summary: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Templates
// ─────────────────────────────────────────────────────────────────────────────

// TemplateByID implements [registry.Store]. System templates (empty owner)
// are visible to every caller.
func (s *Store) TemplateByID(ctx context.Context, id, owner string) (*registry.SummaryTemplate, error) {
	const q = `
SELECT id, owner_id, name, content, is_default, usage_count, created_at, updated_at
FROM summary_templates
WHERE id = $1 AND ($2 = '' OR owner_id = $2 OR owner_id = '')`

	var t registry.SummaryTemplate
	err := s.pool.QueryRow(ctx, q, id, owner).Scan(&t.ID, &t.OwnerID, &t.Name,
		&t.Content, &t.IsDefault, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registry store: template %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry store: get template: %w", err)
	}
	return &t, nil
}

// BindTemplate implements [registry.Store].
func (s *Store) BindTemplate(ctx context.Context, sessionID, templateID, owner string) error {
	if _, err := s.TemplateByID(ctx, templateID, owner); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("registry store: bind template: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const sessionQ = `
UPDATE recording_sessions
SET template_id = $2, updated_at = now()
WHERE id = $1 AND ($3 = '' OR owner_id = $3)`

	tag, err := tx.Exec(ctx, sessionQ, sessionID, templateID, owner)
	if err != nil {
		return fmt.Errorf("registry store: bind template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registry store: session %s: %w", sessionID, fault.ErrNotFound)
	}

	const usageQ = `
UPDATE summary_templates
SET usage_count = usage_count + 1, updated_at = now()
WHERE id = $1`

	if _, err := tx.Exec(ctx, usageQ, templateID); err != nil {
		return fmt.Errorf("registry store: bump template usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("registry store: bind template: commit: %w", err)
	}
	return nil
}
