// Package task tracks long-running background jobs in process. Each task has
// a lifecycle of pending → started → success | failed | cancelled; terminal
// states are immutable. Workers poll [Tracker.IsCancelled] between steps to
// honor cancellation cooperatively.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/observe"
)

// State is the lifecycle state of a task.
type State string

const (
	StatePending   State = "pending"
	StateStarted   State = "started"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether s is final.
func (s State) IsTerminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateCancelled
}

// Progress is the last reported progress of a running task.
type Progress struct {
	Step    string `json:"step"`
	Percent int    `json:"percent"`
}

// Task is a snapshot of one tracked job.
type Task struct {
	ID        string    `json:"task_id"`
	Kind      string    `json:"kind"`
	SessionID string    `json:"session_id"`
	State     State     `json:"state"`
	Progress  Progress  `json:"progress"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Option configures a [Tracker].
type Option func(*Tracker)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

// WithMetrics sets the metrics sink for task outcome counters.
func WithMetrics(metrics *observe.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = metrics
	}
}

// Tracker keeps task records in memory. Records live until the process exits;
// the realtime flow bounds their number to the sessions of one day.
type Tracker struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		tasks: make(map[string]*Task),
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Create registers a new pending task and returns its id.
func (t *Tracker) Create(kind, sessionID string) string {
	id := uuid.NewString()
	now := time.Now().UTC()
	t.mu.Lock()
	t.tasks[id] = &Task{
		ID:        id,
		Kind:      kind,
		SessionID: sessionID,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.mu.Unlock()
	t.log.Info("task created", "task", id, "kind", kind, "session", sessionID)
	return id
}

// Get returns a snapshot of the task.
func (t *Tracker) Get(id string) (Task, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tk, ok := t.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, fault.ErrNotFound)
	}
	return *tk, nil
}

// Start moves a pending task to started. Starting a cancelled task returns
// an error so the worker never begins.
func (t *Tracker) Start(id string) error {
	return t.transition(id, StateStarted, nil, "")
}

// SetProgress records a progress marker on a running task. Progress on a
// terminal task is dropped silently; the late worker update lost the race.
func (t *Tracker) SetProgress(id, step string, percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[id]
	if !ok || tk.State.IsTerminal() {
		return
	}
	tk.Progress = Progress{Step: step, Percent: percent}
	tk.UpdatedAt = time.Now().UTC()
}

// Succeed moves the task to success with its result.
func (t *Tracker) Succeed(id string, result any) error {
	return t.transition(id, StateSuccess, result, "")
}

// Fail moves the task to failed with the error message.
func (t *Tracker) Fail(id string, taskErr error) error {
	msg := ""
	if taskErr != nil {
		msg = taskErr.Error()
	}
	return t.transition(id, StateFailed, nil, msg)
}

// Cancel requests cancellation. Only pending and started tasks can be
// cancelled; terminal tasks return fault.ErrInvalidTransition.
func (t *Tracker) Cancel(id string) error {
	return t.transition(id, StateCancelled, nil, "")
}

// IsCancelled reports whether the task was cancelled. Unknown ids read as
// cancelled so an orphaned worker stops.
func (t *Tracker) IsCancelled(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tk, ok := t.tasks[id]
	if !ok {
		return true
	}
	return tk.State == StateCancelled
}

func (t *Tracker) transition(id string, to State, result any, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, fault.ErrNotFound)
	}
	if tk.State.IsTerminal() {
		return fmt.Errorf("task %s: %s → %s: %w", id, tk.State, to, fault.ErrInvalidTransition)
	}
	if to == StateStarted && tk.State != StatePending {
		return fmt.Errorf("task %s: %s → started: %w", id, tk.State, fault.ErrInvalidTransition)
	}
	tk.State = to
	tk.Result = result
	tk.Error = errMsg
	tk.UpdatedAt = time.Now().UTC()
	if to.IsTerminal() {
		tk.Progress.Percent = progressFor(to, tk.Progress.Percent)
		if t.metrics != nil {
			t.metrics.RecordTaskOutcome(context.Background(), tk.Kind, string(to))
		}
	}
	return nil
}

// progressFor pins the percent on terminal transitions: success always reads
// as 100, failed and cancelled keep the last reported value.
func progressFor(s State, current int) int {
	if s == StateSuccess {
		return 100
	}
	return current
}
