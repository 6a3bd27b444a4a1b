// Package wsrouter implements the media control plane over a persistent
// WebSocket to the media server's control endpoint. Commands are JSON frames
// answered by matching acks.
package wsrouter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/media"
)

// Compile-time interface check.
var _ media.Router = (*Router)(nil)

const defaultCallTimeout = 10 * time.Second

// command is one control frame sent to the media server.
type command struct {
	Action  string `json:"action"`
	Room    string `json:"room,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Payload []byte `json:"payload,omitempty"`
	Token   string `json:"token,omitempty"`
}

// ack is the media server's reply to a command.
type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Option configures a [Router].
type Option func(*Router)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) {
		r.log = log
	}
}

// WithCallTimeout bounds each command round trip. Defaults to 10 s.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) {
		r.callTimeout = d
	}
}

// Router is a WebSocket-backed [media.Router]. The connection is dialed
// lazily on first use and redialed after failures; commands serialize on one
// connection because the control protocol pairs each command with one ack.
type Router struct {
	url         string
	token       string
	callTimeout time.Duration
	log         *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates a Router for the media server control endpoint at url
// (ws:// or wss://). token authenticates this service on every command.
func New(url, token string, opts ...Option) (*Router, error) {
	if url == "" {
		return nil, errors.New("wsrouter: url must not be empty")
	}
	r := &Router{
		url:         url,
		token:       token,
		callTimeout: defaultCallTimeout,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// EnsureRoom implements media.Router.
func (r *Router) EnsureRoom(ctx context.Context, room string) error {
	if _, err := media.ParseRoom(room); err != nil {
		return err
	}
	return r.call(ctx, command{Action: "ensure_room", Room: room})
}

// RemoveRoom implements media.Router.
func (r *Router) RemoveRoom(ctx context.Context, room string) error {
	return r.call(ctx, command{Action: "remove_room", Room: room})
}

// Publish implements media.Router.
func (r *Router) Publish(ctx context.Context, room, topic string, payload []byte) error {
	return r.call(ctx, command{Action: "publish", Room: room, Topic: topic, Payload: payload})
}

// Close implements media.Router.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close(websocket.StatusNormalClosure, "shutdown")
	r.conn = nil
	return err
}

// call sends one command and waits for its ack, holding the connection lock
// for the whole round trip.
func (r *Router) call(ctx context.Context, cmd command) error {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	cmd.Token = r.token

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("wsrouter: router closed: %w", fault.ErrServiceUnavailable)
	}

	conn, err := r.connLocked(ctx)
	if err != nil {
		return err
	}

	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		r.dropLocked()
		return fmt.Errorf("wsrouter: send %s: %w: %v", cmd.Action, fault.ErrServiceUnavailable, err)
	}

	var reply ack
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		r.dropLocked()
		return fmt.Errorf("wsrouter: await ack for %s: %w: %v", cmd.Action, fault.ErrServiceUnavailable, err)
	}
	if !reply.OK {
		return fmt.Errorf("wsrouter: %s rejected: %s", cmd.Action, reply.Error)
	}
	return nil
}

// connLocked returns the live connection, dialing if needed. Callers hold mu.
func (r *Router) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}
	conn, _, err := websocket.Dial(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsrouter: dial %s: %w: %v", r.url, fault.ErrServiceUnavailable, err)
	}
	r.log.Info("media control connected", "url", r.url)
	r.conn = conn
	return conn, nil
}

// dropLocked discards a broken connection so the next call redials.
func (r *Router) dropLocked() {
	if r.conn != nil {
		_ = r.conn.Close(websocket.StatusInternalError, "control call failed")
		r.conn = nil
	}
}
