// Package keyed layers an ordered key index over a slab.
//
// A slab addresses values by dense uint32 handles; keyed adds a by-key
// view on top. A B-tree maps user keys to handles, so values stay in
// index-stable slots while lookups, range scans, and ordered iteration
// run over the tree.
//
// Index is the bare mapping for callers that manage their own slab.
// Store combines both halves and keeps them consistent: Insert files a
// value and indexes its handle, Delete unfiles the key and frees the
// slot.
//
// The index is derived data. Snapshots persist the slab alone; after a
// restore, Wrap rebuilds the index from the live slots.
package keyed
