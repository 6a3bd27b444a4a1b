// Package mock provides a test double for diarize.Client.
package mock

import (
	"context"
	"sync"

	"github.com/intrascribe/intrascribe/pkg/provider/diarize"
)

// Compile-time assertion that Client implements diarize.Client.
var _ diarize.Client = (*Client)(nil)

// Client replies with a fixed response or delegates to DiarizeFunc.
type Client struct {
	mu sync.Mutex

	// DiarizeFunc, when set, handles every call.
	DiarizeFunc func(ctx context.Context, audio []byte, fileFormat, sessionID string) (diarize.Response, error)

	// Response is returned when DiarizeFunc is nil.
	Response diarize.Response

	// Err is returned alongside the zero response when set.
	Err error

	calls int
}

// Diarize implements diarize.Client.
func (c *Client) Diarize(ctx context.Context, audio []byte, fileFormat, sessionID string) (diarize.Response, error) {
	c.mu.Lock()
	c.calls++
	fn := c.DiarizeFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio, fileFormat, sessionID)
	}
	if c.Err != nil {
		return diarize.Response{}, c.Err
	}
	return c.Response, nil
}

// Calls returns how many times Diarize was invoked.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
