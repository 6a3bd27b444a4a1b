package stt

// AudioData is the audio payload of a transcription request. The canonical
// wire format is a float32 sample array normalised to [-1, 1).
type AudioData struct {
	// SampleRate in Hz of the samples in AudioArray.
	SampleRate int `json:"sample_rate"`

	// AudioArray holds the PCM as normalised float samples.
	AudioArray []float32 `json:"audio_array"`

	// Format names the source container ("wav", "mp3", ...). Informational;
	// the samples are already decoded.
	Format string `json:"format"`

	// DurationSeconds is len(AudioArray) / SampleRate.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Request is the body of POST /transcribe.
type Request struct {
	AudioData AudioData `json:"audio_data"`
	SessionID string    `json:"session_id"`
	Language  string    `json:"language"`
}

// Response is the transcription result. Text may contain bracketed
// meta-tokens (<|...|>) that the caller strips before use.
type Response struct {
	Success          bool    `json:"success"`
	Text             string  `json:"text"`
	ConfidenceScore  float64 `json:"confidence_score"`
	ProcessingTimeMs int     `json:"processing_time_ms"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}
