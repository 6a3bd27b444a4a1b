package httpapi

import (
	"time"

	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/pkg/types"
)

// sessionView is the wire shape of a session.
type sessionView struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Language        string         `json:"language,omitempty"`
	Status          string         `json:"status"`
	TemplateID      string         `json:"template_id,omitempty"`
	DurationSeconds int            `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
}

func viewSession(s *registry.Session) sessionView {
	return sessionView{
		ID:              s.ID,
		Title:           s.Title,
		Language:        s.Language,
		Status:          string(s.Status),
		TemplateID:      s.TemplateID,
		DurationSeconds: s.DurationSeconds,
		Metadata:        s.Metadata,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		EndedAt:         s.EndedAt,
	}
}

func viewSessions(sessions []*registry.Session) []sessionView {
	out := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, viewSession(s))
	}
	return out
}

// transcriptView is the wire shape of a persisted transcript.
type transcriptView struct {
	ID        string                       `json:"id"`
	SessionID string                       `json:"session_id"`
	Content   string                       `json:"content"`
	Segments  []types.TranscriptionSegment `json:"segments"`
	Language  string                       `json:"language,omitempty"`
	WordCount int                          `json:"word_count"`
	ModelID   string                       `json:"model_id"`
	Status    string                       `json:"status"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

func viewTranscript(t *registry.Transcript) transcriptView {
	segments := t.Segments
	if segments == nil {
		segments = []types.TranscriptionSegment{}
	}
	return transcriptView{
		ID:        t.ID,
		SessionID: t.SessionID,
		Content:   t.Content,
		Segments:  segments,
		Language:  t.Language,
		WordCount: t.WordCount,
		ModelID:   t.ModelID,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
