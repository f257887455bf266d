package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist, so
// filesystem-backed stores get it for free.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable named blobs: snapshots, archived log segments,
// and manifests. Implementations must be safe for concurrent use.
//
// Names use forward slashes regardless of platform ("snapshots/a1b2.slab").
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create starts a streaming write. The blob becomes visible under its
	// name only when the returned writer is closed without error.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a complete blob in one call, replacing any previous
	// content atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer

	// Size returns the blob length in bytes.
	Size() int64

	// ReadAt reads len(p) bytes starting at off. Short reads at the end
	// of the blob return the count read and io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over [off, min(off+length, Size())).
	// An offset at or past the end returns io.EOF.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// WritableBlob is a streaming blob writer. Data is only durable and
// visible after Close returns nil.
type WritableBlob interface {
	io.WriteCloser

	// Sync flushes written data to stable storage where the backend
	// supports it. Object stores commit on Close and treat Sync as a
	// no-op.
	Sync() error
}

// Mappable is an optional interface for blobs whose content is available
// as a byte slice without copying. The slice is valid until the blob is
// closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// Aborter is an optional interface for writable blobs that can abandon an
// in-progress write without publishing it.
type Aborter interface {
	Abort() error
}

// Discard abandons a write without publishing when the writer supports
// it. Writers without Abort are closed, which may publish whatever was
// written so far.
func Discard(w WritableBlob) {
	if a, ok := w.(Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}

// ReadAll reads the complete contents of the named blob.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	r, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}
