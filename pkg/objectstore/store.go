// Package objectstore abstracts the blob storage used for session recordings.
//
// Paths follow raw/{owner}/{session}_{epoch}.{ext} for realtime captures and
// batch-transcription/{owner}/{session}_{epoch}.{ext} for imports. Each upload
// writes a unique path, so uploads never collide; deletes are idempotent.
package objectstore

import "context"

// UploadResult describes a completed upload.
type UploadResult struct {
	// Path is the object path within the bucket as stored.
	Path string

	// PublicURL is a browser-reachable URL when the bucket supports it,
	// empty otherwise.
	PublicURL string
}

// DeleteResult reports the outcome of one path in a batch delete.
type DeleteResult struct {
	Path string
	Err  error
}

// Store is the abstraction over the object storage backend. Implementations
// must be safe for concurrent use.
type Store interface {
	// Upload writes data to bucket/path with the given content type.
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (UploadResult, error)

	// Download reads the object at bucket/path. Missing objects return an
	// error wrapping fault.ErrNotFound.
	Download(ctx context.Context, bucket, path string) ([]byte, error)

	// Delete removes the given paths, returning one result per path. A
	// missing object is not an error.
	Delete(ctx context.Context, bucket string, paths []string) []DeleteResult
}
