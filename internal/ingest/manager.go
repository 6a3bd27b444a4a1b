package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/observe"
	"github.com/intrascribe/intrascribe/pkg/media"
	"github.com/intrascribe/intrascribe/pkg/provider/stt"
)

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger. Defaults to slog.Default().
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithManagerMetrics sets the metrics sink for adapter gauges; it is passed
// down to every adapter the manager starts.
func WithManagerMetrics(metrics *observe.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager tracks the live adapter of each recording session. It owns room
// creation and teardown on the media server; one session has at most one
// adapter at a time.
//
// All methods are safe for concurrent use.
type Manager struct {
	store   Store
	stt     stt.Client
	router  media.Router
	log     *slog.Logger
	metrics *observe.Metrics

	mu       sync.Mutex
	adapters map[string]*Adapter
}

// NewManager creates a Manager with no live adapters.
func NewManager(store Store, sttClient stt.Client, router media.Router, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		stt:      sttClient,
		router:   router,
		log:      slog.Default(),
		adapters: make(map[string]*Adapter),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start ensures the session's room exists on the media server and starts an
// adapter for it. Starting an already-live session returns the existing room
// without touching the adapter.
func (m *Manager) Start(ctx context.Context, sessionID, language string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("ingest: empty session id: %w", fault.ErrInvalidInput)
	}
	room := media.RoomPrefix + sessionID

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adapters[sessionID]; ok {
		return room, nil
	}

	if err := m.router.EnsureRoom(ctx, room); err != nil {
		return "", fmt.Errorf("ingest: ensure room for session %s: %w", sessionID, err)
	}

	a, err := New(room, m.store, m.stt, m.router,
		WithLogger(m.log),
		WithLanguage(language),
		WithMetrics(m.metrics),
	)
	if err != nil {
		return "", err
	}
	m.adapters[sessionID] = a
	if m.metrics != nil {
		m.metrics.ActiveAdapters.Add(ctx, 1)
		m.metrics.ActiveSessions.Add(ctx, 1)
	}
	m.log.Info("live session started", "session", sessionID, "room", room)
	return room, nil
}

// Push hands a frame to the session's adapter.
func (m *Manager) Push(sessionID string, frame Frame) error {
	m.mu.Lock()
	a, ok := m.adapters[sessionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("ingest: session %s has no live adapter: %w", sessionID, fault.ErrNotFound)
	}
	return a.Push(frame)
}

// Stop closes the session's adapter, flushing its residual buffer, and
// removes the room from the media server. Stopping a session with no live
// adapter fails with fault.ErrNotFound.
func (m *Manager) Stop(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	a, ok := m.adapters[sessionID]
	delete(m.adapters, sessionID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("ingest: session %s has no live adapter: %w", sessionID, fault.ErrNotFound)
	}

	err := a.Close(ctx)
	if m.metrics != nil {
		m.metrics.ActiveAdapters.Add(ctx, -1)
		m.metrics.ActiveSessions.Add(ctx, -1)
	}
	if rerr := m.router.RemoveRoom(ctx, media.RoomPrefix+sessionID); rerr != nil {
		m.log.Warn("removing room failed", "session", sessionID, "error", rerr)
	}
	m.log.Info("live session stopped", "session", sessionID)
	return err
}

// CloseAll stops every live adapter. Used during shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.adapters))
	for id := range m.adapters {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil && !errors.Is(err, fault.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
