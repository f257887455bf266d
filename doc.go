// Package slabgo provides an embedded, index-stable slot store for Go.
//
// Values live in a slab allocator that hands out compact uint32 handles.
// A handle stays valid for the life of its value: storage grows in blocks,
// freed slots are recycled through an intrusive free list, and growth never
// invalidates a handle. Raw pointers into the store are another matter —
// growth reallocates the buffer and relocates values, so persist handles,
// not addresses.
//
// # Quick Start
//
//	ctx := context.Background()
//	db, _ := slabgo.New[Order]()
//	defer db.Close()
//
//	h, _ := db.Insert(ctx, Order{ID: "A-1001", Total: 250})
//	order, _ := db.Get(h)
//	_ = db.Erase(ctx, h)
//
// The slab package underneath offers the same store without the facade:
// no locking, no durability, unchecked handle access, cursors and
// iterators. Use it directly when the caller owns synchronization.
//
// # Durability
//
// With a WAL, every mutation is applied to the store and then logged;
// entries are flushed and synced per the configured durability mode
// (async, group commit, or sync). Snapshots bound recovery time, and
// auto-checkpoint rewrites the snapshot whenever WAL thresholds are
// exceeded:
//
//	db, _ := slabgo.New[Order](
//	    slabgo.WithWAL("./wal", func(o *wal.Options) {
//	        o.DurabilityMode = wal.DurabilityGroupCommit
//	        o.AutoCheckpointOps = 10000
//	    }),
//	    slabgo.WithSnapshotPath("./data/orders.slab"),
//	)
//
// After a crash, reload the snapshot and replay the tail:
//
//	db, _ := slabgo.NewFromFile[Order]("./data/orders.slab",
//	    slabgo.WithWAL("./wal"))
//	_ = db.RecoverFromWAL(ctx)
//
// # Scanning
//
// The fluent scan API filters live values in handle order:
//
//	results, _ := db.Scan().
//	    Filter(func(h slabgo.Handle, o *Order) bool { return o.Total > 100 }).
//	    Limit(10).
//	    Execute(ctx)
//
// # Key Features
//
//   - Stable uint32 handles: one tag word of overhead per slot, O(1)
//     insert, erase and lookup
//   - Pluggable growth policies (constant blocks or geometric) and a
//     memory-gating resource controller
//   - Write-Ahead Logging with async, group-commit and sync modes
//   - Compressed snapshots (LZ4/zstd) with mmap-backed header reads
//   - Snapshot publishing to object storage (S3, MinIO) with versioned,
//     DynamoDB-arbitrated manifests
//   - Ordered key views over handles via the keyed package
package slabgo
