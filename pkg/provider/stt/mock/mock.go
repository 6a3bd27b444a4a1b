// Package mock provides a test double for stt.Client.
package mock

import (
	"context"
	"sync"

	"github.com/intrascribe/intrascribe/pkg/provider/stt"
)

// Compile-time assertion that Client implements stt.Client.
var _ stt.Client = (*Client)(nil)

// Client records every request and replies from a configurable function or a
// fixed queue of responses. The zero value replies with an empty successful
// response to every request.
type Client struct {
	mu sync.Mutex

	// TranscribeFunc, when set, handles every call.
	TranscribeFunc func(ctx context.Context, req stt.Request) (stt.Response, error)

	// Responses, when non-empty, are returned in order; the last one repeats.
	Responses []stt.Response

	requests []stt.Request
	calls    int
}

// Transcribe implements stt.Client.
func (c *Client) Transcribe(ctx context.Context, req stt.Request) (stt.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	n := c.calls
	c.calls++
	fn := c.TranscribeFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Responses) == 0 {
		return stt.Response{Success: true}, nil
	}
	if n >= len(c.Responses) {
		n = len(c.Responses) - 1
	}
	return c.Responses[n], nil
}

// Requests returns a copy of all recorded requests.
func (c *Client) Requests() []stt.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]stt.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Calls returns how many times Transcribe was invoked.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
