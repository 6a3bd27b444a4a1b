package httpapi

import (
	"net/http"

	"github.com/intrascribe/intrascribe/pkg/types"
)

// The internal realtime routes let an out-of-process adapter append to the
// ephemeral store over HTTP instead of linking the store directly.

func (s *Server) appendTranscription(w http.ResponseWriter, r *http.Request) {
	var seg types.TranscriptionSegment
	if err := decodeBody(r, &seg); err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.cache.AppendTranscription(r.Context(), r.PathValue("id"), seg); err != nil {
		s.writeFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) appendAudio(w http.ResponseWriter, r *http.Request) {
	var chunk types.AudioChunk
	if err := decodeBody(r, &chunk); err != nil {
		s.writeFault(w, r, err)
		return
	}
	if err := s.cache.AppendAudio(r.Context(), r.PathValue("id"), chunk); err != nil {
		s.writeFault(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) liveTranscription(w http.ResponseWriter, r *http.Request) {
	segments, err := s.cache.ListTranscriptions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if segments == nil {
		segments = []types.TranscriptionSegment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments})
}
