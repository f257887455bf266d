package manifest

import (
	"errors"
	"time"
)

const (
	// ManifestPrefix is the name prefix of versioned manifest blobs.
	ManifestPrefix = "MANIFEST"
	// CurrentFileName is the pointer blob naming the active manifest.
	CurrentFileName = "CURRENT"
	// SnapshotPrefix is the name prefix under which snapshots are stored.
	SnapshotPrefix = "snapshots/"

	// CurrentVersion is the manifest format version.
	CurrentVersion = 1
)

var (
	// ErrNotFound is returned when no manifest has been committed yet.
	ErrNotFound = errors.New("manifest not found")

	// ErrIncompatibleVersion is returned when the manifest format version
	// is not supported.
	ErrIncompatibleVersion = errors.New("incompatible manifest version")
)

// Manifest records one committed state of a slab: which snapshot blob
// holds it and how far the write-ahead log was consumed when the snapshot
// was taken. Replaying the WAL from WALSeq over the snapshot reproduces
// the live store.
type Manifest struct {
	Version   int          `json:"version"`
	ID        uint64       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Snapshot  SnapshotInfo `json:"snapshot"`
	WALSeq    uint64       `json:"wal_seq"`
}

// SnapshotInfo describes the snapshot blob a manifest points at. Size and
// the slot counts let tooling inspect a store without downloading it.
type SnapshotInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Capacity int    `json:"capacity"`
	Live     int    `json:"live"`
}

// New creates an empty manifest. The first Save assigns ID 1.
func New() *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		CreatedAt: time.Now(),
	}
}
