// Package remote provides a diarize.Client backed by the diarization
// microservice's HTTP API (POST /diarize).
package remote

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/provider/diarize"
)

// Diarization runs a full pass over the complete recording, so the default
// timeout is wider than the per-chunk STT one.
const defaultTimeout = 120 * time.Second

// Compile-time assertion that Client implements diarize.Client.
var _ diarize.Client = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client calls the diarization service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the service at baseURL. baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("diarize: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Diarize implements diarize.Client.
func (c *Client) Diarize(ctx context.Context, audio []byte, fileFormat, sessionID string) (diarize.Response, error) {
	body, err := json.Marshal(diarize.Request{
		AudioData:  hex.EncodeToString(audio),
		FileFormat: fileFormat,
		SessionID:  sessionID,
	})
	if err != nil {
		return diarize.Response{}, fmt.Errorf("diarize: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diarize", bytes.NewReader(body))
	if err != nil {
		return diarize.Response{}, fmt.Errorf("diarize: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return diarize.Response{}, fmt.Errorf("diarize: %w: %v", fault.ErrServiceUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return diarize.Response{}, fmt.Errorf("diarize: %w: server returned HTTP %d", fault.ErrServiceUnavailable, httpResp.StatusCode)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return diarize.Response{}, fmt.Errorf("diarize: read response: %w", err)
	}

	var resp diarize.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return diarize.Response{}, fmt.Errorf("diarize: parse response: %w", err)
	}
	return resp, nil
}
