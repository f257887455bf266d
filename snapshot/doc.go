// Package snapshot serializes slab stores to a compact binary format.
//
// A snapshot captures the complete allocation state: slot tags, the free
// list head, and every live value encoded with a pluggable codec. Reading a
// snapshot rebuilds a store whose handles are identical to the one that was
// written, so persisted handle references stay valid across restarts.
//
// The file layout is a fixed header, a checksummed section table, and three
// sections: the tag words (block-compressed), a roaring bitmap of live
// handles, and the records. Sections are independently verifiable, and
// OpenMapped serves header and live-set queries from a memory mapping
// without materializing the store.
//
// Snapshots pair with the wal package for durability: the header records the
// WAL sequence the snapshot covers, and recovery replays only entries beyond
// it.
package snapshot
