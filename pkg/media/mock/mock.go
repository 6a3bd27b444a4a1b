// Package mock provides an in-memory media.Router for tests.
package mock

import (
	"context"
	"sync"

	"github.com/intrascribe/intrascribe/pkg/media"
)

// Compile-time interface check.
var _ media.Router = (*Router)(nil)

// Message is one recorded Publish call.
type Message struct {
	Room    string
	Topic   string
	Payload []byte
}

// Router records rooms and published messages.
type Router struct {
	mu       sync.Mutex
	rooms    map[string]bool
	messages []Message

	// PublishErr, when set, fails every Publish.
	PublishErr error
}

// New creates an empty Router.
func New() *Router {
	return &Router{rooms: make(map[string]bool)}
}

// EnsureRoom implements media.Router.
func (r *Router) EnsureRoom(ctx context.Context, room string) error {
	if _, err := media.ParseRoom(room); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room] = true
	return nil
}

// RemoveRoom implements media.Router.
func (r *Router) RemoveRoom(ctx context.Context, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, room)
	return nil
}

// Publish implements media.Router.
func (r *Router) Publish(ctx context.Context, room, topic string, payload []byte) error {
	if r.PublishErr != nil {
		return r.PublishErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.messages = append(r.messages, Message{Room: room, Topic: topic, Payload: cp})
	return nil
}

// Close implements media.Router.
func (r *Router) Close() error { return nil }

// HasRoom reports whether the room currently exists.
func (r *Router) HasRoom(room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[room]
}

// Messages returns all recorded Publish calls.
func (r *Router) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
