package blobstore

import (
	"context"
	"io"
)

// Store defines the interface for blob persistence.
type Store interface {
	// Put writes the blob under key, replacing any previous content.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get retrieves the blob stored under key.
	// The caller is responsible for closing the returned reader.
	// Returns ErrNotFound if no blob exists under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob under key.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ReadAll is a convenience helper that fetches a blob and reads it fully.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
