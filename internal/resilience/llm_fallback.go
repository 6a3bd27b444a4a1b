package resilience

import (
	"context"
	"sync/atomic"

	"github.com/intrascribe/intrascribe/pkg/provider/llm"
)

type atomicString struct {
	v atomic.Value
}

func (a *atomicString) store(s string) { a.v.Store(s) }

func (a *atomicString) load() string {
	s, _ := a.v.Load().(string)
	return s
}

// LLMFallback implements [llm.Provider] with automatic failover across multiple
// LLM backends. Each backend has its own circuit breaker; when the primary fails
// or its breaker is open, the next healthy fallback is tried.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
	last  atomicString
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	f := &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
	f.last.store(primary.Name())
	return f
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err == nil {
			f.last.store(p.Name())
		}
		return resp, err
	})
}

// Name reports the backend that served the most recent successful completion,
// so persisted summaries record the model that actually produced them.
func (f *LLMFallback) Name() string {
	return f.last.load()
}
