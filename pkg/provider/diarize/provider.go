// Package diarize defines the Client interface for the speaker diarization
// service.
//
// The service receives a whole recording and returns labelled speaker
// intervals. It is treated as best-effort: when it is unreachable or returns
// an unsuccessful result, callers fall back to a single segment spanning the
// full recording.
package diarize

import (
	"context"

	"github.com/intrascribe/intrascribe/pkg/types"
)

// Request is the body of POST /diarize. AudioData carries the raw container
// bytes hex-encoded.
type Request struct {
	AudioData  string `json:"audio_data"`
	FileFormat string `json:"file_format"`
	SessionID  string `json:"session_id"`
}

// Response holds the diarization result.
type Response struct {
	Success          bool                   `json:"success"`
	Segments         []types.SpeakerSegment `json:"segments"`
	SpeakerCount     int                    `json:"speaker_count"`
	ProcessingTimeMs int                    `json:"processing_time_ms"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
}

// Client is the abstraction over the diarization service. Implementations
// must be safe for concurrent use.
type Client interface {
	// Diarize sends the raw recording bytes and waits for the speaker
	// segments. A reply with Success == false is returned with a nil error;
	// transport failures wrap fault.ErrServiceUnavailable.
	Diarize(ctx context.Context, audio []byte, fileFormat, sessionID string) (Response, error)
}
