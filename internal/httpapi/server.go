// Package httpapi is the service's HTTP surface. Public routes carry the
// owner id in the X-User-ID header; internal routes used by the realtime
// layer authenticate with the shared service token instead and skip the
// ownership filter.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/finalize"
	"github.com/intrascribe/intrascribe/internal/ingest"
	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/internal/retrans"
	"github.com/intrascribe/intrascribe/internal/task"
	"github.com/intrascribe/intrascribe/pkg/objectstore"
	"github.com/intrascribe/intrascribe/pkg/types"
)

const (
	// ownerHeader carries the authenticated user id set by the gateway.
	ownerHeader = "X-User-ID"

	// maxImportBytes bounds one batch upload.
	maxImportBytes = 100 << 20

	// maxBodyBytes bounds ordinary JSON request bodies.
	maxBodyBytes = 10 << 20
)

// Finalizer runs the finalization pipeline. *finalize.Pipeline satisfies it.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID, callerID string) (*finalize.Result, error)
}

// Retranscriber runs retranscription and batch import jobs. *retrans.Service
// satisfies it.
type Retranscriber interface {
	Retranscribe(ctx context.Context, sessionID, callerID, language string) (string, error)
	Import(ctx context.Context, req retrans.ImportRequest) (retrans.ImportResult, error)
}

// Live manages realtime adapters. *ingest.Manager satisfies it.
type Live interface {
	Start(ctx context.Context, sessionID, language string) (string, error)
	Stop(ctx context.Context, sessionID string) error
	Push(sessionID string, frame ingest.Frame) error
}

// Cache is the ephemeral-store slice the internal realtime routes need.
type Cache interface {
	AppendTranscription(ctx context.Context, sessionID string, seg types.TranscriptionSegment) error
	AppendAudio(ctx context.Context, sessionID string, chunk types.AudioChunk) error
	ListTranscriptions(ctx context.Context, sessionID string) ([]types.TranscriptionSegment, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithObjectStore enables media object cleanup on session delete.
func WithObjectStore(objects objectstore.Store, bucket string) Option {
	return func(s *Server) {
		s.objects = objects
		s.bucket = bucket
	}
}

// WithLive enables the live recording routes. Without it those routes
// answer 503.
func WithLive(live Live) Option {
	return func(s *Server) {
		s.live = live
	}
}

// Server holds the handler dependencies. Build the routes with [Server.Routes].
type Server struct {
	registry     registry.Store
	cache        Cache
	finalizer    Finalizer
	retrans      Retranscriber
	tasks        *task.Tracker
	serviceToken string

	objects objectstore.Store
	bucket  string
	live    Live

	log *slog.Logger
}

// New creates a Server. serviceToken guards the internal routes.
func New(reg registry.Store, cache Cache, fin Finalizer, ret Retranscriber,
	tasks *task.Tracker, serviceToken string, opts ...Option) *Server {
	s := &Server{
		registry:     reg,
		cache:        cache,
		finalizer:    fin,
		retrans:      ret,
		tasks:        tasks,
		serviceToken: serviceToken,
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the ServeMux with every route registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/sessions", s.withOwner(s.createSession))
	mux.HandleFunc("GET /api/v1/sessions", s.withOwner(s.listSessions))
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.withOwner(s.getSession))
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", s.withOwner(s.updateSession))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.withOwner(s.deleteSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/start", s.withOwner(s.startRecording))
	mux.HandleFunc("POST /api/v1/sessions/{id}/stop", s.withOwner(s.stopRecording))
	mux.HandleFunc("POST /api/v1/sessions/{id}/finalize", s.withOwner(s.finalizeSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/retranscribe", s.withOwner(s.retranscribeSession))
	mux.HandleFunc("POST /api/v1/sessions/{id}/template", s.withOwner(s.bindTemplate))
	mux.HandleFunc("GET /api/v1/sessions/{id}/transcriptions", s.withOwner(s.listTranscripts))
	mux.HandleFunc("POST /api/v1/transcriptions/batch", s.withOwner(s.batchImport))

	mux.HandleFunc("GET /api/v1/tasks/{id}", s.withOwner(s.getTask))
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.withOwner(s.cancelTask))

	mux.HandleFunc("POST /internal/v1/sessions/{id}/transcription", s.withServiceToken(s.appendTranscription))
	mux.HandleFunc("POST /internal/v1/sessions/{id}/audio", s.withServiceToken(s.appendAudio))
	mux.HandleFunc("POST /internal/v1/sessions/{id}/frames", s.withServiceToken(s.pushFrame))
	mux.HandleFunc("GET /internal/v1/sessions/{id}/transcription", s.withServiceToken(s.liveTranscription))

	return mux
}

// ownerHandler is a handler that already passed the owner check.
type ownerHandler func(w http.ResponseWriter, r *http.Request, owner string)

// withOwner requires the gateway-set owner header.
func (s *Server) withOwner(h ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(ownerHeader)
		if owner == "" {
			writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		h(w, r, owner)
	}
}

// withServiceToken requires the internal bearer token.
func (s *Server) withServiceToken(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.serviceToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.serviceToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid service token")
			return
		}
		h(w, r)
	}
}

// ─── response helpers ───

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFault maps an error kind to its status code. Internal errors keep
// their detail out of the response body.
func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	status := fault.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(fault.ErrInvalidInput, err)
	}
	return nil
}
