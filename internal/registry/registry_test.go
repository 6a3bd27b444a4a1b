package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/internal/registry/mock"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		name        string
		from, to    registry.Status
		viaPipeline bool
		wantErr     bool
	}{
		{"created to recording", registry.StatusCreated, registry.StatusRecording, false, false},
		{"recording to paused", registry.StatusRecording, registry.StatusPaused, false, false},
		{"paused to recording", registry.StatusPaused, registry.StatusRecording, false, false},
		{"recording to processing via pipeline", registry.StatusRecording, registry.StatusProcessing, true, false},
		{"recording to processing direct", registry.StatusRecording, registry.StatusProcessing, false, true},
		{"processing to completed", registry.StatusProcessing, registry.StatusCompleted, false, false},
		{"completed to processing via pipeline", registry.StatusCompleted, registry.StatusProcessing, true, false},
		{"completed to recording", registry.StatusCompleted, registry.StatusRecording, false, true},
		{"recording to completed skips processing", registry.StatusRecording, registry.StatusCompleted, false, true},
		{"any to cancelled", registry.StatusPaused, registry.StatusCancelled, false, false},
		{"completed to archived", registry.StatusCompleted, registry.StatusArchived, false, false},
		{"cancelled is absorbing", registry.StatusCancelled, registry.StatusRecording, false, true},
		{"archived is absorbing", registry.StatusArchived, registry.StatusProcessing, true, true},
		{"same status is a no-op", registry.StatusRecording, registry.StatusRecording, false, false},
		{"unknown status", registry.StatusCreated, registry.Status("bogus"), false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := registry.ValidateTransition(tc.from, tc.to, tc.viaPipeline)
			if tc.wantErr && err == nil {
				t.Fatalf("%s → %s: expected error", tc.from, tc.to)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("%s → %s: unexpected error %v", tc.from, tc.to, err)
			}
		})
	}
}

func TestValidateTransition_ErrorKind(t *testing.T) {
	err := registry.ValidateTransition(registry.StatusCompleted, registry.StatusRecording, false)
	if !errors.Is(err, fault.ErrInvalidTransition) {
		t.Fatalf("err = %v, want fault.ErrInvalidTransition", err)
	}
}

func TestUpdateSession_OwnershipFilter(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	sess := &registry.Session{OwnerID: "alice", Title: "standup"}
	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	status := registry.StatusRecording
	if _, err := m.UpdateSession(ctx, sess.ID, registry.Update{Status: &status}, "bob"); !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("foreign owner: err = %v, want fault.ErrNotFound", err)
	}

	// The internal caller (empty owner) bypasses the filter.
	got, err := m.UpdateSession(ctx, sess.ID, registry.Update{Status: &status}, "")
	if err != nil {
		t.Fatalf("internal update: %v", err)
	}
	if got.Status != registry.StatusRecording {
		t.Errorf("status: got %s", got.Status)
	}
}

func TestUpdateSession_RejectsInvalidTransition(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	sess := &registry.Session{OwnerID: "alice"}
	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	completed := registry.StatusCompleted
	if _, err := m.UpdateSession(ctx, sess.ID, registry.Update{Status: &completed}, "alice"); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Fatalf("created → completed: err = %v, want fault.ErrInvalidTransition", err)
	}

	// The failed update must not have advanced the status.
	got, err := m.SessionByID(ctx, sess.ID, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != registry.StatusCreated {
		t.Errorf("status after rejected update: got %s, want created", got.Status)
	}
}

func TestReplaceTranscript_UpdatesNewestOrInserts(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	// No transcript yet: replace inserts.
	first := &registry.Transcript{SessionID: "s-1", Content: "v1", WordCount: 1}
	if err := m.ReplaceTranscript(ctx, first); err != nil {
		t.Fatalf("replace into empty: %v", err)
	}
	rows, err := m.TranscriptsBySession(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Content != "v1" {
		t.Fatalf("after insert: got %d rows", len(rows))
	}

	// A second replace overwrites in place instead of growing the history.
	second := &registry.Transcript{SessionID: "s-1", Content: "v2", WordCount: 1}
	if err := m.ReplaceTranscript(ctx, second); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows, err = m.TranscriptsBySession(ctx, "s-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows after replace: got %d, want 1", len(rows))
	}
	if rows[0].Content != "v2" {
		t.Errorf("content: got %q, want v2", rows[0].Content)
	}
	if second.ID != first.ID {
		t.Errorf("replace should reuse the newest row id: got %s, want %s", second.ID, first.ID)
	}
}

func TestBindTemplate_BumpsUsage(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	m.AddTemplate(&registry.SummaryTemplate{ID: "tpl-1", Name: "meeting"})
	sess := &registry.Session{OwnerID: "alice"}
	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.BindTemplate(ctx, sess.ID, "tpl-1", "alice"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	got, err := m.SessionByID(ctx, sess.ID, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TemplateID != "tpl-1" {
		t.Errorf("template: got %q", got.TemplateID)
	}
	tpl, err := m.TemplateByID(ctx, "tpl-1", "alice")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if tpl.UsageCount != 1 {
		t.Errorf("usage count: got %d, want 1", tpl.UsageCount)
	}

	if err := m.BindTemplate(ctx, sess.ID, "missing", "alice"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("bind missing template: err = %v, want fault.ErrNotFound", err)
	}
}
