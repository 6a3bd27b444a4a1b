package bucketapi_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/objectstore/bucketapi"
)

// storageStub is a minimal in-memory bucket REST endpoint.
func storageStub(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	objects := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/object/")
		switch r.Method {
		case http.MethodPost:
			data, _ := io.ReadAll(r.Body)
			objects[key] = data
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			data, ok := objects[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(data)
		case http.MethodDelete:
			if _, ok := objects[key]; !ok {
				http.NotFound(w, r)
				return
			}
			delete(objects, key)
			w.WriteHeader(http.StatusOK)
		}
	}))
	return srv, objects
}

func TestUploadDownloadDelete(t *testing.T) {
	srv, objects := storageStub(t)
	defer srv.Close()

	c, err := bucketapi.New(srv.URL, "secret", bucketapi.WithPublicURLs(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	payload := []byte("mp3 bytes")
	result, err := c.Upload(ctx, "audio-recordings", "raw/u1/s1_123.mp3", payload, "audio/mpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Path != "raw/u1/s1_123.mp3" {
		t.Errorf("path: got %q", result.Path)
	}
	if !strings.Contains(result.PublicURL, "/object/public/audio-recordings/raw/u1/s1_123.mp3") {
		t.Errorf("public url: got %q", result.PublicURL)
	}
	if !bytes.Equal(objects["audio-recordings/raw/u1/s1_123.mp3"], payload) {
		t.Error("stored object does not match upload payload")
	}

	got, err := c.Download(ctx, "audio-recordings", "raw/u1/s1_123.mp3")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("download: got %q, want %q", got, payload)
	}

	results := c.Delete(ctx, "audio-recordings", []string{"raw/u1/s1_123.mp3", "raw/u1/missing.mp3"})
	if len(results) != 2 {
		t.Fatalf("delete results: got %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("delete %s: unexpected error %v", r.Path, r.Err)
		}
	}
	if len(objects) != 0 {
		t.Errorf("objects remaining after delete: %d", len(objects))
	}
}

func TestDownload_Missing(t *testing.T) {
	srv, _ := storageStub(t)
	defer srv.Close()

	c, err := bucketapi.New(srv.URL, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = c.Download(context.Background(), "audio-recordings", "raw/u1/nope.mp3")
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("err = %v, want fault.ErrNotFound", err)
	}
}

func TestUpload_AuthHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := bucketapi.New(srv.URL, "svc-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Upload(context.Background(), "b", "p", []byte("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if auth != "Bearer svc-token" {
		t.Errorf("authorization: got %q, want Bearer svc-token", auth)
	}
}
