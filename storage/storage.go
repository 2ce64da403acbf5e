package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when the named blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore persists raw file bytes. Audio blobs live at the root of the
// store; cover and lyrics blobs live under the "covers/" and "lyrics/"
// prefixes. Implementations do not hold any in-process lock during the
// slow I/O.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
	// ListAudio returns the names of all audio blobs at the store root.
	// The listing service uses it to surface files that exist in storage
	// but lost their metadata record.
	ListAudio(ctx context.Context) ([]string, error)
}
