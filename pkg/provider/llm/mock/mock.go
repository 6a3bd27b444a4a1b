// Package mock provides an in-memory llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/intrascribe/intrascribe/pkg/provider/llm"
)

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Provider is a configurable test double. The zero value answers every
// request with an empty response.
type Provider struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest

	// CompleteFunc, when set, handles every Complete call.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// Content is returned when CompleteFunc is nil.
	Content string

	// Err, when set, fails every Complete call.
	Err error

	// ProviderName overrides the reported name. Defaults to "mock".
	ProviderName string
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return &llm.CompletionResponse{Content: p.Content}, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Requests returns all recorded requests.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
