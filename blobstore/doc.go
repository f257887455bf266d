// Package blobstore abstracts where a slab's durable artifacts live:
// snapshots, archived WAL segments, and the manifests that tie them
// together.
//
// BlobStore is the interface the snapshot and manifest packages write
// against. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and ephemeral stores
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// # Custom Implementations
//
// Implement the BlobStore interface to support other backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)           // open for reading
//	    Create(ctx, name) (WritableBlob, error) // stream a new blob
//	    Put(ctx, name, data) error              // atomic whole-blob write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs expose ReadRange for backends where partial reads are cheaper
// than full downloads:
//
//	type Blob interface {
//	    io.Closer
//	    Size() int64
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, length) (io.ReadCloser, error)
//	}
package blobstore
