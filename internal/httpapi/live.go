package httpapi

import (
	"fmt"
	"net/http"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/internal/ingest"
	"github.com/intrascribe/intrascribe/internal/registry"
)

type startRecordingResponse struct {
	Room   string `json:"room"`
	Status string `json:"status"`
}

// frameRequest is one PCM frame pushed by the media layer.
type frameRequest struct {
	SampleRate int     `json:"sample_rate"`
	Samples    []int16 `json:"samples"`
}

func (s *Server) startRecording(w http.ResponseWriter, r *http.Request, owner string) {
	if s.live == nil {
		s.writeFault(w, r, fmt.Errorf("live recording not configured: %w", fault.ErrServiceUnavailable))
		return
	}
	id := r.PathValue("id")
	sess, err := s.registry.SessionByID(r.Context(), id, owner)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}

	room, err := s.live.Start(r.Context(), id, sess.Language)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}

	if sess.Status != registry.StatusRecording {
		status := registry.StatusRecording
		if _, err := s.registry.UpdateSession(r.Context(), id, registry.Update{Status: &status}, owner); err != nil {
			// Roll back the adapter so a bad state machine does not leak rooms.
			_ = s.live.Stop(r.Context(), id)
			s.writeFault(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, startRecordingResponse{Room: room, Status: string(registry.StatusRecording)})
}

func (s *Server) stopRecording(w http.ResponseWriter, r *http.Request, owner string) {
	if s.live == nil {
		s.writeFault(w, r, fmt.Errorf("live recording not configured: %w", fault.ErrServiceUnavailable))
		return
	}
	id := r.PathValue("id")
	if _, err := s.registry.SessionByID(r.Context(), id, owner); err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.live.Stop(r.Context(), id); err != nil {
		s.writeFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pushFrame(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		s.writeFault(w, r, fmt.Errorf("live recording not configured: %w", fault.ErrServiceUnavailable))
		return
	}
	var req frameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.live.Push(r.PathValue("id"), ingest.Frame{
		SampleRate: req.SampleRate,
		Samples:    req.Samples,
	}); err != nil {
		s.writeFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
