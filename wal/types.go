package wal

import (
	"time"

	"github.com/hupe1980/slabgo/slab"
)

// DurabilityMode defines the fsync behavior for WAL writes.
type DurabilityMode int

const (
	// DurabilityAsync performs no fsync. Fastest writes, but a crash can
	// lose everything since the last OS flush. Use when external
	// replication provides durability.
	DurabilityAsync DurabilityMode = iota

	// DurabilityGroupCommit batches fsync across operations at a fixed
	// interval, amortizing its cost. A logged operation does not return
	// until the sync covering it has happened. Recommended for most
	// workloads.
	DurabilityGroupCommit

	// DurabilitySync fsyncs after every operation. Slowest, strongest.
	DurabilitySync
)

// EntryType identifies the operation recorded by a WAL entry.
type EntryType uint8

const (
	// EntryInsert records a slot allocation with its encoded value.
	EntryInsert EntryType = iota + 1
	// EntryUpdate records an in-place overwrite of a live slot.
	EntryUpdate
	// EntryErase records a slot release.
	EntryErase
	// EntryClear records a full reset of the store.
	EntryClear
	// EntryCheckpoint marks that all preceding entries are covered by a
	// snapshot. Replay stops here.
	EntryCheckpoint
)

// Entry is a single WAL record.
//
// Handle is the slot the operation touched; replaying inserts from the same
// starting state must reproduce it, which is how recovery detects divergence
// between log and snapshot. Payload carries the codec-encoded value for
// inserts and updates and is empty otherwise.
type Entry struct {
	Type    EntryType
	Seq     uint64
	Handle  slab.Handle
	Payload []byte
}

// Options contains configuration for the WAL.
type Options struct {
	// Path is the directory where the WAL file is stored.
	Path string

	// Compress enables zstd stream compression. Worth it once payloads
	// are more than a few bytes; the frame overhead dominates below that.
	Compress bool

	// CompressionLevel sets the zstd level (1-22). Default 3.
	CompressionLevel int

	// AutoCheckpointOps triggers the checkpoint callback after N logged
	// operations. 0 disables the op-count trigger.
	AutoCheckpointOps int

	// AutoCheckpointMB triggers the checkpoint callback when the WAL file
	// exceeds N megabytes. 0 disables the size trigger.
	AutoCheckpointMB int

	// DurabilityMode controls fsync behavior (Async, GroupCommit, Sync).
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the maximum time an operation waits for its
	// covering fsync in GroupCommit mode. Default 10ms.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps fsyncs immediately once this many operations are
	// pending, without waiting for the interval. Default 100.
	GroupCommitMaxOps int
}

// DefaultOptions returns default WAL options.
var DefaultOptions = Options{
	Path:                ".",
	Compress:            false,
	CompressionLevel:    3,
	AutoCheckpointOps:   10000,
	AutoCheckpointMB:    100,
	DurabilityMode:      DurabilityGroupCommit,
	GroupCommitInterval: 10 * time.Millisecond,
	GroupCommitMaxOps:   100,
}
