// Package mock provides an in-memory registry.Store for tests. It enforces
// the same ownership and status transition rules as the real store.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/registry"
)

// Compile-time interface check.
var _ registry.Store = (*Store)(nil)

// Store keeps all rows in maps guarded by one mutex.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*registry.Session
	transcripts map[string][]*registry.Transcript
	audioFiles  map[string][]*registry.AudioFile
	summaries   []*registry.AISummary
	templates   map[string]*registry.SummaryTemplate

	// FailWith, when set, fails every operation. Lets tests exercise
	// persistence-failure paths.
	FailWith error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sessions:    make(map[string]*registry.Session),
		transcripts: make(map[string][]*registry.Transcript),
		audioFiles:  make(map[string][]*registry.AudioFile),
		templates:   make(map[string]*registry.SummaryTemplate),
	}
}

func copySession(s *registry.Session) *registry.Session {
	cp := *s
	if s.Metadata != nil {
		cp.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// CreateSession implements registry.Store.
func (m *Store) CreateSession(ctx context.Context, s *registry.Session) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	if s.OwnerID == "" {
		return fmt.Errorf("mock registry: owner required: %w", fault.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = registry.StatusCreated
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *Store) lookup(id, owner string) (*registry.Session, error) {
	s, ok := m.sessions[id]
	if !ok || (owner != "" && s.OwnerID != owner) {
		return nil, fmt.Errorf("mock registry: session %s: %w", id, fault.ErrNotFound)
	}
	return s, nil
}

// SessionByID implements registry.Store.
func (m *Store) SessionByID(ctx context.Context, id, owner string) (*registry.Session, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(id, owner)
	if err != nil {
		return nil, err
	}
	return copySession(s), nil
}

// SessionsByOwner implements registry.Store.
func (m *Store) SessionsByOwner(ctx context.Context, owner string, limit, offset int) ([]*registry.Session, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*registry.Session
	for _, s := range m.sessions {
		if s.OwnerID == owner {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateSession implements registry.Store.
func (m *Store) UpdateSession(ctx context.Context, id string, upd registry.Update, owner string) (*registry.Session, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(id, owner)
	if err != nil {
		return nil, err
	}
	if upd.Status != nil {
		if err := registry.ValidateTransition(s.Status, *upd.Status, upd.ViaPipeline); err != nil {
			return nil, err
		}
		s.Status = *upd.Status
	}
	if upd.Title != nil {
		s.Title = *upd.Title
	}
	if upd.TemplateID != nil {
		s.TemplateID = *upd.TemplateID
	}
	if upd.DurationSeconds != nil {
		s.DurationSeconds = *upd.DurationSeconds
	}
	if upd.EndedAt != nil {
		s.EndedAt = upd.EndedAt
	}
	for k, v := range upd.Metadata {
		if s.Metadata == nil {
			s.Metadata = map[string]any{}
		}
		s.Metadata[k] = v
	}
	s.UpdatedAt = time.Now().UTC()
	return copySession(s), nil
}

// DeleteSession implements registry.Store.
func (m *Store) DeleteSession(ctx context.Context, id, owner string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(id, owner); err != nil {
		return err
	}
	delete(m.sessions, id)
	delete(m.transcripts, id)
	delete(m.audioFiles, id)
	return nil
}

// SaveTranscript implements registry.Store.
func (m *Store) SaveTranscript(ctx context.Context, t *registry.Transcript) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = "completed"
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	m.transcripts[t.SessionID] = append(m.transcripts[t.SessionID], &cp)
	return nil
}

// TranscriptsBySession implements registry.Store.
func (m *Store) TranscriptsBySession(ctx context.Context, sessionID string) ([]*registry.Transcript, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.transcripts[sessionID]
	out := make([]*registry.Transcript, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		cp := *rows[i]
		out = append(out, &cp)
	}
	return out, nil
}

// ReplaceTranscript implements registry.Store.
func (m *Store) ReplaceTranscript(ctx context.Context, t *registry.Transcript) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.transcripts[t.SessionID]
	if len(rows) == 0 {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.Status = "completed"
		now := time.Now().UTC()
		t.CreatedAt = now
		t.UpdatedAt = now
		cp := *t
		m.transcripts[t.SessionID] = append(rows, &cp)
		return nil
	}
	newest := rows[len(rows)-1]
	newest.Content = t.Content
	newest.Segments = t.Segments
	newest.Language = t.Language
	newest.WordCount = t.WordCount
	newest.ModelID = t.ModelID
	newest.Status = "completed"
	newest.UpdatedAt = time.Now().UTC()
	t.ID = newest.ID
	return nil
}

// DeleteTranscripts implements registry.Store.
func (m *Store) DeleteTranscripts(ctx context.Context, sessionID string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transcripts, sessionID)
	return nil
}

// SaveAudioFile implements registry.Store.
func (m *Store) SaveAudioFile(ctx context.Context, f *registry.AudioFile) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.CreatedAt = time.Now().UTC()
	cp := *f
	m.audioFiles[f.SessionID] = append(m.audioFiles[f.SessionID], &cp)
	return nil
}

// AudioFilesBySession implements registry.Store.
func (m *Store) AudioFilesBySession(ctx context.Context, sessionID string) ([]*registry.AudioFile, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.audioFiles[sessionID]
	out := make([]*registry.AudioFile, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		cp := *rows[i]
		out = append(out, &cp)
	}
	return out, nil
}

// SaveSummary implements registry.Store.
func (m *Store) SaveSummary(ctx context.Context, s *registry.AISummary) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	cp := *s
	m.summaries = append(m.summaries, &cp)
	return nil
}

// TemplateByID implements registry.Store.
func (m *Store) TemplateByID(ctx context.Context, id, owner string) (*registry.SummaryTemplate, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || (owner != "" && t.OwnerID != "" && t.OwnerID != owner) {
		return nil, fmt.Errorf("mock registry: template %s: %w", id, fault.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// BindTemplate implements registry.Store.
func (m *Store) BindTemplate(ctx context.Context, sessionID, templateID, owner string) error {
	if _, err := m.TemplateByID(ctx, templateID, owner); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup(sessionID, owner)
	if err != nil {
		return err
	}
	s.TemplateID = templateID
	m.templates[templateID].UsageCount++
	return nil
}

// AddTemplate seeds a template for tests.
func (m *Store) AddTemplate(t *registry.SummaryTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	m.templates[t.ID] = &cp
}

// Summaries returns all saved summaries.
func (m *Store) Summaries() []*registry.AISummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*registry.AISummary, len(m.summaries))
	copy(out, m.summaries)
	return out
}
