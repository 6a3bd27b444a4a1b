// Package mock provides an in-memory objectstore.Store for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/intrascribe/intrascribe/internal/fault"
	"github.com/intrascribe/intrascribe/pkg/objectstore"
)

// Compile-time assertion that Store implements objectstore.Store.
var _ objectstore.Store = (*Store)(nil)

// Store keeps objects in a map keyed by bucket/path.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// UploadErr, when set, fails every Upload.
	UploadErr error

	// DownloadErr, when set, fails every Download.
	DownloadErr error
}

// New creates an empty Store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

func key(bucket, path string) string { return bucket + "/" + path }

// Upload implements objectstore.Store.
func (s *Store) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (objectstore.UploadResult, error) {
	if s.UploadErr != nil {
		return objectstore.UploadResult{}, s.UploadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key(bucket, path)] = cp
	return objectstore.UploadResult{
		Path:      path,
		PublicURL: fmt.Sprintf("mock://%s/%s", bucket, path),
	}, nil
}

// Download implements objectstore.Store.
func (s *Store) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	if s.DownloadErr != nil {
		return nil, s.DownloadErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key(bucket, path)]
	if !ok {
		return nil, fmt.Errorf("mock: object %s/%s: %w", bucket, path, fault.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete implements objectstore.Store.
func (s *Store) Delete(ctx context.Context, bucket string, paths []string) []objectstore.DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]objectstore.DeleteResult, 0, len(paths))
	for _, path := range paths {
		delete(s.objects, key(bucket, path))
		results = append(results, objectstore.DeleteResult{Path: path})
	}
	return results
}

// Exists reports whether an object is currently stored.
func (s *Store) Exists(bucket, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key(bucket, path)]
	return ok
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
