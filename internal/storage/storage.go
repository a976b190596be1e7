// Package storage reads and writes photo originals in object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

type ObjectInfo struct {
	Path        string
	Size        int64
	ContentType string
}

// Store is the object storage used for photo originals. Implementations must
// return an error matching ErrNotFound for missing objects so callers can
// tell them apart from outages.
type Store interface {
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	// Open streams an object. The caller closes the reader.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	Delete(ctx context.Context, path string) error
}

func readAll(ctx context.Context, s Store, path string) ([]byte, error) {
	rc, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
