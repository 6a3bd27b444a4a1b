package registry

import "context"

// Store is the persistence contract for sessions, transcripts, audio files,
// summaries, and templates. Implementations enforce the status state machine
// on every update and apply the owner filter when a non-empty owner is given.
type Store interface {
	// CreateSession persists a new session. A zero ID and timestamps are
	// filled in; the status defaults to created.
	CreateSession(ctx context.Context, s *Session) error

	// SessionByID returns the session, filtered by owner unless owner is
	// empty. Missing or foreign sessions yield fault.ErrNotFound.
	SessionByID(ctx context.Context, id, owner string) (*Session, error)

	// SessionsByOwner lists the owner's sessions, newest first.
	SessionsByOwner(ctx context.Context, owner string, limit, offset int) ([]*Session, error)

	// UpdateSession applies upd after validating any status change against
	// the state machine and returns the updated session.
	UpdateSession(ctx context.Context, id string, upd Update, owner string) (*Session, error)

	// DeleteSession removes the session row and, via cascades, its
	// transcripts, audio file rows, and summaries. The stored media objects
	// themselves are the caller's concern; AudioFilesBySession should be
	// read first to collect their paths.
	DeleteSession(ctx context.Context, id, owner string) error

	// SaveTranscript inserts a new transcript row.
	SaveTranscript(ctx context.Context, t *Transcript) error

	// TranscriptsBySession lists transcripts newest first.
	TranscriptsBySession(ctx context.Context, sessionID string) ([]*Transcript, error)

	// ReplaceTranscript updates the newest transcript of the session with
	// t's content, or inserts t when the session has none.
	ReplaceTranscript(ctx context.Context, t *Transcript) error

	// DeleteTranscripts removes every transcript of the session. Idempotent.
	DeleteTranscripts(ctx context.Context, sessionID string) error

	// SaveAudioFile inserts an audio file row.
	SaveAudioFile(ctx context.Context, f *AudioFile) error

	// AudioFilesBySession lists audio file rows newest first.
	AudioFilesBySession(ctx context.Context, sessionID string) ([]*AudioFile, error)

	// SaveSummary inserts an AI summary row.
	SaveSummary(ctx context.Context, s *AISummary) error

	// TemplateByID returns a summary template, filtered by owner unless
	// owner is empty. System templates have an empty owner and are visible
	// to everyone.
	TemplateByID(ctx context.Context, id, owner string) (*SummaryTemplate, error)

	// BindTemplate sets the session's template and bumps the template's
	// usage count.
	BindTemplate(ctx context.Context, sessionID, templateID, owner string) error
}
