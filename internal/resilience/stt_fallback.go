package resilience

import (
	"context"

	"github.com/intrascribe/intrascribe/pkg/provider/stt"
)

// STTFallback implements [stt.Client] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Client]
}

// Compile-time interface assertion.
var _ stt.Client = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Client, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend as a fallback.
func (f *STTFallback) AddFallback(name string, client stt.Client) {
	f.group.AddFallback(name, client)
}

// Transcribe sends the request to the first healthy backend. If the primary
// fails, subsequent fallbacks are tried with the same request.
func (f *STTFallback) Transcribe(ctx context.Context, req stt.Request) (stt.Response, error) {
	return ExecuteWithResult(f.group, func(c stt.Client) (stt.Response, error) {
		return c.Transcribe(ctx, req)
	})
}
