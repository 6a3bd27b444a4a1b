// Package bucketapi provides an objectstore.Store backed by a bucket REST
// API of the {base}/object/{bucket}/{path} form, with public objects served
// under {base}/object/public/{bucket}/{path}.
package bucketapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/objectstore"
)

const defaultTimeout = 60 * time.Second

// Compile-time assertion that Client implements objectstore.Store.
var _ objectstore.Store = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 60 s.
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

// WithPublicURLs marks every bucket as serving public objects, letting
// Upload return a browsable URL. Defaults to false.
func WithPublicURLs(public bool) Option {
	return func(c *Client) {
		c.public = public
	}
}

// Client talks to the storage service's bucket REST API.
type Client struct {
	baseURL    string
	apiKey     string
	public     bool
	httpClient *http.Client
}

// New creates a Client for the storage API at baseURL, authenticating every
// request with apiKey as a bearer token.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("bucketapi: baseURL must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Upload implements objectstore.Store.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (objectstore.UploadResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, bucket, path, bytes.NewReader(data))
	if err != nil {
		return objectstore.UploadResult{}, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return objectstore.UploadResult{}, fmt.Errorf("bucketapi: upload %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return objectstore.UploadResult{}, fmt.Errorf("bucketapi: upload %s/%s: HTTP %d", bucket, path, resp.StatusCode)
	}

	result := objectstore.UploadResult{Path: path}
	if c.public {
		result.PublicURL = fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, bucket, path)
	}
	return result, nil
}

// Download implements objectstore.Store.
func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, bucket, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bucketapi: download %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("bucketapi: object %s/%s: %w", bucket, path, fault.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("bucketapi: download %s/%s: HTTP %d", bucket, path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bucketapi: read %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// Delete implements objectstore.Store. Missing objects count as deleted.
func (c *Client) Delete(ctx context.Context, bucket string, paths []string) []objectstore.DeleteResult {
	results := make([]objectstore.DeleteResult, 0, len(paths))
	for _, path := range paths {
		results = append(results, objectstore.DeleteResult{
			Path: path,
			Err:  c.deleteOne(ctx, bucket, path),
		})
	}
	return results
}

func (c *Client) deleteOne(ctx context.Context, bucket, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, bucket, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bucketapi: delete %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bucketapi: delete %s/%s: HTTP %d", bucket, path, resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, bucket, path string, body io.Reader) (*http.Request, error) {
	url := fmt.Sprintf("%s/object/%s/%s", c.baseURL, bucket, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("bucketapi: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}
