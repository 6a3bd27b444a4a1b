// Package remote provides an stt.Client backed by the transcription
// microservice's HTTP API (POST /transcribe).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/provider/stt"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultLanguage = "zh-CN"
)

// Compile-time assertion that Client implements stt.Client.
var _ stt.Client = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 30 s.
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

// WithLanguage sets the language sent when a request carries none.
// Defaults to "zh-CN".
func WithLanguage(lang string) Option {
	return func(c *Client) {
		c.language = lang
	}
}

// Client calls the transcription service over HTTP.
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New creates a Client for the service at baseURL (e.g.
// "http://localhost:8001"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("stt: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Transcribe implements stt.Client. Transport and non-2xx failures are
// wrapped as fault.ErrServiceUnavailable so callers can apply the drop or
// fall-back recovery the error kind prescribes.
func (c *Client) Transcribe(ctx context.Context, req stt.Request) (stt.Response, error) {
	if req.Language == "" {
		req.Language = c.language
	}

	body, err := json.Marshal(req)
	if err != nil {
		return stt.Response{}, fmt.Errorf("stt: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return stt.Response{}, fmt.Errorf("stt: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return stt.Response{}, fmt.Errorf("stt: %w: %v", fault.ErrServiceUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return stt.Response{}, fmt.Errorf("stt: %w: server returned HTTP %d", fault.ErrServiceUnavailable, httpResp.StatusCode)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return stt.Response{}, fmt.Errorf("stt: read response: %w", err)
	}

	var resp stt.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Response{}, fmt.Errorf("stt: parse response: %w", err)
	}
	return resp, nil
}
