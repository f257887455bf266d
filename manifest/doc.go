// Package manifest implements versioned, atomically committed metadata
// for published slab snapshots.
//
// # Overview
//
// A manifest names the snapshot blob that holds a store's state and the
// WAL sequence number that snapshot covers. Publishing a new snapshot
// writes the blob first and commits the manifest second, so readers only
// ever see complete state. Old manifests stay addressable until pruned,
// which keeps historical versions loadable.
//
// # Commit Protocol
//
// Save follows a two-step protocol:
//
//  1. Write the manifest blob to MANIFEST-NNNNNN.json
//  2. Update the CURRENT pointer blob to name it
//
// On local filesystems step 2 is an atomic rename; on S3 it relies on
// strong read-after-write consistency. A crash between the steps leaves
// CURRENT on the previous, fully valid version. For multiple concurrent
// writer processes, wrap the blob store in s3.DDBCommitStore, which
// arbitrates CURRENT through DynamoDB conditional writes.
//
// # Layout
//
//	CURRENT                  -> "MANIFEST-000007.json"
//	MANIFEST-000006.json
//	MANIFEST-000007.json
//	snapshots/<uuid>.slab
//
// # Thread Safety
//
// Store methods are protected by a mutex and safe for concurrent use
// within one process.
package manifest
