package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/registry"
	"github.com/intrascribe/intrascribe/internal/retrans"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type createSessionRequest struct {
	Title      string         `json:"title"`
	Language   string         `json:"language"`
	TemplateID string         `json:"template_id"`
	Metadata   map[string]any `json:"metadata"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, owner string) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFault(w, r, err)
		return
	}
	sess := &registry.Session{
		OwnerID:    owner,
		Title:      req.Title,
		Language:   req.Language,
		TemplateID: req.TemplateID,
		Metadata:   req.Metadata,
	}
	if err := s.registry.CreateSession(r.Context(), sess); err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.log.Info("session created", "session", sess.ID, "owner", owner)
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request, owner string) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	sessions, err := s.registry.SessionsByOwner(r.Context(), owner, limit, offset)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": viewSessions(sessions)})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, owner string) {
	sess, err := s.registry.SessionByID(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

type updateSessionRequest struct {
	Title           *string        `json:"title"`
	Status          *string        `json:"status"`
	TemplateID      *string        `json:"template_id"`
	DurationSeconds *int           `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata"`
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request, owner string) {
	var req updateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFault(w, r, err)
		return
	}
	upd := registry.Update{
		Title:           req.Title,
		TemplateID:      req.TemplateID,
		DurationSeconds: req.DurationSeconds,
		Metadata:        req.Metadata,
	}
	if req.Status != nil {
		status := registry.Status(*req.Status)
		upd.Status = &status
	}

	sess, err := s.registry.UpdateSession(r.Context(), r.PathValue("id"), upd, owner)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")

	// Media paths are collected before the row delete cascades the file
	// records away; the file rows carry no owner, so the delete itself is
	// the ownership gate. Nothing is touched until it passes.
	var paths []string
	if s.objects != nil {
		if files, err := s.registry.AudioFilesBySession(r.Context(), id); err == nil {
			for _, f := range files {
				if f.StoragePath != "" {
					paths = append(paths, f.StoragePath)
				}
			}
		}
	}

	if err := s.registry.DeleteSession(r.Context(), id, owner); err != nil {
		s.writeFault(w, r, err)
		return
	}

	// Row first, then the objects, best effort.
	if s.objects != nil && len(paths) > 0 {
		for _, res := range s.objects.Delete(r.Context(), s.bucket, paths) {
			if res.Err != nil {
				s.log.Warn("media object not deleted", "session", id, "path", res.Path, "error", res.Err)
			}
		}
	}
	s.log.Info("session deleted", "session", id, "owner", owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) finalizeSession(w http.ResponseWriter, r *http.Request, owner string) {
	res, err := s.finalizer.Finalize(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type retranscribeRequest struct {
	Language string `json:"language"`
}

func (s *Server) retranscribeSession(w http.ResponseWriter, r *http.Request, owner string) {
	var req retranscribeRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			s.writeFault(w, r, err)
			return
		}
	}

	taskID, err := s.retrans.Retranscribe(r.Context(), r.PathValue("id"), owner, req.Language)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

type bindTemplateRequest struct {
	TemplateID string `json:"template_id"`
}

func (s *Server) bindTemplate(w http.ResponseWriter, r *http.Request, owner string) {
	var req bindTemplateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFault(w, r, err)
		return
	}
	if req.TemplateID == "" {
		s.writeFault(w, r, fmt.Errorf("template_id is required: %w", fault.ErrInvalidInput))
		return
	}
	if err := s.registry.BindTemplate(r.Context(), r.PathValue("id"), req.TemplateID, owner); err != nil {
		s.writeFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTranscripts(w http.ResponseWriter, r *http.Request, owner string) {
	id := r.PathValue("id")
	// The ownership check runs against the session; transcripts carry no owner.
	if _, err := s.registry.SessionByID(r.Context(), id, owner); err != nil {
		s.writeFault(w, r, err)
		return
	}
	transcripts, err := s.registry.TranscriptsBySession(r.Context(), id)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	views := make([]transcriptView, 0, len(transcripts))
	for _, t := range transcripts {
		views = append(views, viewTranscript(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": views})
}

func (s *Server) batchImport(w http.ResponseWriter, r *http.Request, owner string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		s.writeFault(w, r, fmt.Errorf("parsing upload: %w", fault.ErrInvalidInput))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeFault(w, r, fmt.Errorf("missing file field: %w", fault.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeFault(w, r, fmt.Errorf("reading upload: %w", fault.ErrInvalidInput))
		return
	}

	res, err := s.retrans.Import(r.Context(), retrans.ImportRequest{
		OwnerID:    owner,
		Title:      r.FormValue("title"),
		Language:   r.FormValue("language"),
		TemplateID: r.FormValue("template_id"),
		FileName:   header.Filename,
		Data:       data,
	})
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
