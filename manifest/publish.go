package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/slabgo/blobstore"
	"github.com/hupe1980/slabgo/slab"
	"github.com/hupe1980/slabgo/snapshot"
)

// Publish snapshots s under a fresh blob name and commits a manifest
// pointing at it. walSeq is the WAL sequence number the snapshot covers;
// recovery replays the log from there.
//
// If the commit fails, the orphaned snapshot blob is removed.
func Publish[T any](ctx context.Context, store *Store, s *slab.Store[T], walSeq uint64, optFns ...func(o *snapshot.Options)) (*Manifest, error) {
	name := SnapshotPrefix + uuid.NewString() + ".slab"

	fns := make([]func(o *snapshot.Options), 0, len(optFns)+1)
	fns = append(fns, optFns...)
	fns = append(fns, func(o *snapshot.Options) { o.WALSeq = walSeq })

	if err := snapshot.Save(ctx, store.blobs, name, s, fns...); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	size, err := blobSize(ctx, store.blobs, name)
	if err != nil {
		_ = store.blobs.Delete(ctx, name)
		return nil, err
	}

	m, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		m = New()
	case err != nil:
		_ = store.blobs.Delete(ctx, name)
		return nil, err
	}

	m.Snapshot = SnapshotInfo{
		Name:     name,
		Size:     size,
		Capacity: s.Capacity(),
		Live:     s.Size(),
	}
	m.WALSeq = walSeq

	if err := store.Save(ctx, m); err != nil {
		_ = store.blobs.Delete(ctx, name)
		return nil, err
	}

	return m, nil
}

// Restore loads the current manifest and rebuilds the store from the
// snapshot it points at. The snapshot's recorded WAL position must match
// the manifest's; a mismatch means the blobs under this prefix were
// tampered with or mixed from different stores.
func Restore[T any](ctx context.Context, store *Store, optFns ...func(o *snapshot.ReadOptions)) (*slab.Store[T], *Manifest, error) {
	m, err := store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	if m.Snapshot.Name == "" {
		return nil, nil, fmt.Errorf("manifest %d has no snapshot", m.ID)
	}

	sl, hdr, err := snapshot.Load[T](ctx, store.blobs, m.Snapshot.Name, optFns...)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot %s: %w", m.Snapshot.Name, err)
	}

	if hdr.WALSeq != m.WALSeq {
		return nil, nil, fmt.Errorf("snapshot %s covers WAL seq %d, manifest %d expects %d",
			m.Snapshot.Name, hdr.WALSeq, m.ID, m.WALSeq)
	}

	return sl, m, nil
}

func blobSize(ctx context.Context, blobs blobstore.BlobStore, name string) (int64, error) {
	blob, err := blobs.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer func() { _ = blob.Close() }()

	return blob.Size(), nil
}
