// Package store implements the ephemeral session store on Redis.
//
// Per session it keeps two append-only lists and one state hash:
//
//	session:{id}:transcription — transcription segments, newest first
//	session:{id}:audio         — buffered audio chunks, newest first
//	session:{id}:state         — runtime key/value state
//
// Every key carries a TTL (24 h by default) refreshed on each write, so the
// store is a cache: any entry can disappear after the TTL and every reader
// must tolerate the empty list. Writers push with LPUSH and readers reverse
// the LRANGE result to restore chronological order.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/types"
)

const (
	// defaultTTL matches the session lifetime bound of the realtime flow.
	defaultTTL = 24 * time.Hour

	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
	defaultPoolSize     = 10
	defaultMinIdleConns = 5
)

// ErrNotFound is returned by CacheGet for a missing or expired key.
var ErrNotFound = fault.ErrNotFound

// Option configures a [Store].
type Option func(*Store)

// WithTTL overrides the key TTL. Defaults to 24 h.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// WithPassword sets the Redis AUTH password.
func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

// WithDB selects the Redis logical database. Defaults to 0.
func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

// Store is a Redis-backed ephemeral session store. It is safe for concurrent
// use; append-only list semantics make concurrent appends safe, and a clear
// racing an append simply orphans the late entry until the TTL collects it.
type Store struct {
	rdb      *redis.Client
	ttl      time.Duration
	log      *slog.Logger
	password string
	db       int
}

// New creates a Store connected to the Redis instance at addr and verifies
// the connection with a ping.
func New(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("store: addr must not be empty")
	}

	s := &Store{
		ttl: defaultTTL,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	s.rdb = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     s.password,
		DB:           s.db,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		PoolSize:     defaultPoolSize,
		MinIdleConns: defaultMinIdleConns,
	})

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping %s: %w: %v", addr, fault.ErrStoreUnavailable, err)
	}

	s.log.Info("ephemeral store connected", "addr", addr, "ttl", s.ttl)
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies the store is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store: %w: %v", fault.ErrStoreUnavailable, err)
	}
	return nil
}

// ─── key helpers ─────────────────────────────────────────────────────────────

func transcriptionKey(sessionID string) string { return "session:" + sessionID + ":transcription" }
func audioKey(sessionID string) string         { return "session:" + sessionID + ":audio" }
func stateKey(sessionID string) string         { return "session:" + sessionID + ":state" }

// ─── transcription list ──────────────────────────────────────────────────────

// AppendTranscription appends a segment to the session's transcription list
// and refreshes the TTL. A segment without a timestamp gets a server-assigned
// one. There is no ordering guarantee across concurrent appenders; the read
// path restores chronological order by list position.
func (s *Store) AppendTranscription(ctx context.Context, sessionID string, seg types.TranscriptionSegment) error {
	if seg.Timestamp == "" {
		seg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return s.push(ctx, transcriptionKey(sessionID), seg)
}

// ListTranscriptions returns all segments in chronological order. An expired
// or never-written session yields an empty slice.
func (s *Store) ListTranscriptions(ctx context.Context, sessionID string) ([]types.TranscriptionSegment, error) {
	raw, err := s.list(ctx, transcriptionKey(sessionID))
	if err != nil {
		return nil, err
	}
	segments := make([]types.TranscriptionSegment, 0, len(raw))
	for _, item := range raw {
		var seg types.TranscriptionSegment
		if err := json.Unmarshal([]byte(item), &seg); err != nil {
			s.log.Warn("skipping undecodable transcription entry", "session", sessionID, "error", err)
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// ClearTranscriptions removes the session's transcription list. Idempotent.
func (s *Store) ClearTranscriptions(ctx context.Context, sessionID string) error {
	return s.del(ctx, transcriptionKey(sessionID))
}

// ─── audio list ──────────────────────────────────────────────────────────────

// AppendAudio appends an audio chunk to the session's audio list and
// refreshes the TTL.
func (s *Store) AppendAudio(ctx context.Context, sessionID string, chunk types.AudioChunk) error {
	if chunk.Timestamp == "" {
		chunk.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return s.push(ctx, audioKey(sessionID), chunk)
}

// ListAudio returns all audio chunks in chronological order.
func (s *Store) ListAudio(ctx context.Context, sessionID string) ([]types.AudioChunk, error) {
	raw, err := s.list(ctx, audioKey(sessionID))
	if err != nil {
		return nil, err
	}
	chunks := make([]types.AudioChunk, 0, len(raw))
	for _, item := range raw {
		var chunk types.AudioChunk
		if err := json.Unmarshal([]byte(item), &chunk); err != nil {
			s.log.Warn("skipping undecodable audio entry", "session", sessionID, "error", err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// ClearAudio removes the session's audio list. Idempotent.
func (s *Store) ClearAudio(ctx context.Context, sessionID string) error {
	return s.del(ctx, audioKey(sessionID))
}

// ─── session state ───────────────────────────────────────────────────────────

// SetState merges kv into the session's state hash and refreshes the TTL.
func (s *Store) SetState(ctx context.Context, sessionID string, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	key := stateKey(sessionID)
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, kv)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: set state %s: %w: %v", sessionID, fault.ErrStoreUnavailable, err)
	}
	return nil
}

// GetState returns the session's state hash. Missing sessions yield an empty
// map.
func (s *Store) GetState(ctx context.Context, sessionID string) (map[string]string, error) {
	kv, err := s.rdb.HGetAll(ctx, stateKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: get state %s: %w: %v", sessionID, fault.ErrStoreUnavailable, err)
	}
	return kv, nil
}

// ─── generic cache ───────────────────────────────────────────────────────────

// CacheSet stores a JSON-encoded value under key with its own TTL.
func (s *Store) CacheSet(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode cache value: %w", err)
	}
	if err := s.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store: cache set %s: %w: %v", key, fault.ErrStoreUnavailable, err)
	}
	return nil
}

// CacheGet decodes the value at key into dest. Returns [ErrNotFound] for a
// missing or expired key.
func (s *Store) CacheGet(ctx context.Context, key string, dest any) error {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("store: cache key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: cache get %s: %w: %v", key, fault.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("store: decode cache value %s: %w", key, err)
	}
	return nil
}

// CacheDelete removes key. Idempotent.
func (s *Store) CacheDelete(ctx context.Context, key string) error {
	return s.del(ctx, key)
}

// ─── internals ───────────────────────────────────────────────────────────────

// push LPUSHes a JSON value and refreshes the key TTL in one pipeline.
func (s *Store) push(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode list entry: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: append %s: %w: %v", key, fault.ErrStoreUnavailable, err)
	}
	return nil
}

// list returns the full list in chronological order (LPUSH stores newest
// first, so the LRANGE result is reversed).
func (s *Store) list(ctx context.Context, key string) ([]string, error) {
	items, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w: %v", key, fault.ErrStoreUnavailable, err)
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *Store) del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store: delete %s: %w: %v", key, fault.ErrStoreUnavailable, err)
	}
	return nil
}
