// Package types defines the shared types used across all intrascribe packages.
//
// These types form the lingua franca between the realtime ingest adapter, the
// ephemeral store, and the finalization and retranscription pipelines. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

// TranscriptionSegment is a time-bounded, speaker-attributed piece of
// transcribed text. The realtime adapter emits segments labelled "Speaker 1";
// retranscription replaces the labels with diarized ones.
type TranscriptionSegment struct {
	// Index is the segment's position within the session, starting at 0 and
	// monotonically increasing.
	Index int `json:"index"`

	// Speaker is the speaker label (e.g., "Speaker 1", "speaker_0").
	Speaker string `json:"speaker"`

	// StartSeconds and EndSeconds bound the segment within the session audio.
	// EndSeconds is always greater than StartSeconds.
	StartSeconds float64 `json:"start_time"`
	EndSeconds   float64 `json:"end_time"`

	// Text is the transcribed content with meta-tokens already stripped.
	Text string `json:"text"`

	// Confidence is the STT confidence score in [0, 1]. Zero when the backend
	// does not report one.
	Confidence float64 `json:"confidence,omitempty"`

	// IsFinal distinguishes authoritative segments from interim ones. The
	// adapter only ever stores final segments.
	IsFinal bool `json:"is_final"`

	// Timestamp is the server-assigned wall-clock time of the append.
	Timestamp string `json:"timestamp,omitempty"`
}

// Duration returns the segment length in seconds.
func (s TranscriptionSegment) Duration() float64 {
	return s.EndSeconds - s.StartSeconds
}

// AudioChunk is one buffered slice of session audio held in the ephemeral
// store. Produced by the realtime ingest adapter, consumed exclusively by the
// finalization pipeline.
type AudioChunk struct {
	// Samples holds mono 16-bit PCM as int16 values. JSON transport uses the
	// plain integer array form so any store reader can decode it.
	Samples []int16 `json:"audio_data"`

	// SampleRateHz is the rate the chunk was resampled to (canonical 24000).
	SampleRateHz int `json:"sample_rate"`

	// Timestamp is the capture time in RFC 3339 form.
	Timestamp string `json:"timestamp"`

	// DurationSeconds is sample count divided by sample rate.
	DurationSeconds float64 `json:"duration_seconds"`
}

// SpeakerSegment is one diarization result interval. After post-processing no
// two segments of a result overlap and every segment lasts at least one second.
type SpeakerSegment struct {
	StartSeconds    float64 `json:"start_time"`
	EndSeconds      float64 `json:"end_time"`
	Label           string  `json:"speaker_label"`
	DurationSeconds float64 `json:"duration"`
}
