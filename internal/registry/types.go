// Package registry holds the authoritative per-session metadata: status,
// ownership, timing, and template binding, plus the persisted transcripts and
// audio files a session accumulates.
//
// Session status advances through a fixed state machine; every status update
// is validated against it. Ownership checks are mediated here: operations
// take an owner argument, and an empty owner means an internal-service caller
// that skips the ownership filter.
package registry

import (
	"fmt"
	"time"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/types"
)

// Status is the lifecycle state of a recording session.
type Status string

const (
	StatusCreated    Status = "created"
	StatusRecording  Status = "recording"
	StatusPaused     Status = "paused"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusArchived   Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRecording, StatusPaused, StatusProcessing,
		StatusCompleted, StatusCancelled, StatusArchived:
		return true
	}
	return false
}

// IsTerminal reports whether s is absorbing.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusArchived
}

// transitions lists the permitted next statuses per current status.
// recording→processing and completed→processing additionally require the
// pipeline flag (see ValidateTransition); cancelled and archived are
// absorbing.
var transitions = map[Status][]Status{
	StatusCreated:    {StatusRecording, StatusProcessing, StatusCancelled, StatusArchived},
	StatusRecording:  {StatusPaused, StatusProcessing, StatusCancelled, StatusArchived},
	StatusPaused:     {StatusRecording, StatusProcessing, StatusCancelled, StatusArchived},
	StatusProcessing: {StatusCompleted, StatusCancelled, StatusArchived},
	StatusCompleted:  {StatusProcessing, StatusArchived},
	StatusCancelled:  {},
	StatusArchived:   {},
}

// ValidateTransition checks that from→to is permitted. viaPipeline marks
// callers inside the finalization or retranscription pipelines, which alone
// may move a session into processing. Same-status updates are always allowed.
func ValidateTransition(from, to Status, viaPipeline bool) error {
	if from == to {
		return nil
	}
	if !to.IsValid() {
		return fmt.Errorf("registry: unknown status %q: %w", to, fault.ErrInvalidInput)
	}
	if to == StatusProcessing && !viaPipeline {
		return fmt.Errorf("registry: %s → processing outside the pipeline: %w", from, fault.ErrInvalidTransition)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("registry: %s → %s: %w", from, to, fault.ErrInvalidTransition)
}

// Session is the authoritative record of one capture interval.
type Session struct {
	ID         string
	OwnerID    string
	Title      string
	Language   string
	Status     Status
	TemplateID string

	CreatedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time

	// DurationSeconds is set by the finalization pipeline from the measured
	// audio length; zero until then.
	DurationSeconds int

	Metadata map[string]any
}

// Update carries the mutable session fields for UpdateSession. Nil pointers
// leave the corresponding field untouched.
type Update struct {
	Title           *string
	Status          *Status
	TemplateID      *string
	DurationSeconds *int
	EndedAt         *time.Time
	Metadata        map[string]any

	// ViaPipeline marks status updates issued by the finalization or
	// retranscription pipelines (see ValidateTransition).
	ViaPipeline bool
}

// Transcript is a persisted transcription of one session. Retranscription
// replaces the newest transcript atomically; finalization creates the
// initial one.
type Transcript struct {
	ID        string
	SessionID string
	Content   string
	Segments  []types.TranscriptionSegment
	Language  string
	WordCount int
	ModelID   string
	Status    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AudioFile references one uploaded media object. Rows are created only by
// the finalization or batch pipelines and never mutated after a successful
// upload.
type AudioFile struct {
	ID        string
	SessionID string
	OwnerID   string

	StoragePath string
	PublicURL   string
	SizeBytes   int64

	DurationSeconds int
	Format          string
	SampleRateHz    int

	UploadStatus     string
	ProcessingStatus string

	CreatedAt time.Time
}

// Upload status values for AudioFile rows.
const (
	UploadCompleted = "completed"
	UploadFailed    = "failed"
)

// AISummary is a generated summary bound to a transcript.
type AISummary struct {
	ID              string
	SessionID       string
	TranscriptionID string
	Summary         string
	KeyPoints       []string
	ModelUsed       string

	CreatedAt time.Time
}

// SummaryTemplate is a reusable prompt template a session can bind to.
type SummaryTemplate struct {
	ID         string
	OwnerID    string
	Name       string
	Content    string
	IsDefault  bool
	UsageCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}
