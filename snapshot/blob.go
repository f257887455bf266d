package snapshot

import (
	"bufio"
	"context"
	"fmt"

	"github.com/hupe1980/slabgo/blobstore"
	"github.com/hupe1980/slabgo/slab"
)

// Save writes a snapshot of s to the named blob. On failure the write is
// discarded, so the store never holds a partial snapshot under name.
func Save[T any](ctx context.Context, store blobstore.BlobStore, name string, s *slab.Store[T], optFns ...func(o *Options)) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("create snapshot blob: %w", err)
	}

	buf := bufio.NewWriterSize(w, 256*1024)

	if err := Write(buf, s, optFns...); err != nil {
		blobstore.Discard(w)
		return err
	}

	if err := buf.Flush(); err != nil {
		blobstore.Discard(w)
		return err
	}

	return w.Close()
}

// Load reads a snapshot from the named blob and rebuilds the store.
func Load[T any](ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(o *ReadOptions)) (*slab.Store[T], Header, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, Header{}, fmt.Errorf("open snapshot blob: %w", err)
	}
	defer func() { _ = blob.Close() }()

	r, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, Header{}, err
	}
	defer func() { _ = r.Close() }()

	return Read[T](bufio.NewReaderSize(r, 256*1024), optFns...)
}
