// Package slab provides a growable slot store with stable integer handles.
//
// A Store[T] keeps values of one type in a contiguous buffer and names each
// occupied slot with a Handle, a small integer that stays valid across
// buffer reallocation. Slots freed by Erase are recycled in LIFO order
// through an intrusive free list threaded through per-slot tag words, so
// the only per-slot overhead is one uint32.
//
// # Handles
//
// Handle 0 is Nil: slot 0 is committed and immediately retired when the
// store is created, so the free-list terminator can never collide with a
// slot that could be handed out. Handles are dense; a store that only
// inserts issues 1, 2, 3, ... and iterates in insertion order.
//
// # Growth
//
// When the free list runs dry the store commits a new block of slots sized
// by its GrowthPolicy. An optional MemoryGate is consulted before each
// growth, letting several stores share one memory budget; a veto surfaces
// as ErrGrowthDenied from the insert that needed the space.
//
// # Concurrency Model
//
// Store supports any number of concurrent readers OR one writer, like a
// plain map. It does no internal locking: single-threaded inserts and
// erases are a handful of word writes, and callers that need a concurrent
// container wrap the store (see the root slabgo package).
//
// # Persistence
//
// State() exports the bookkeeping (tags, free head, size) and FromState
// rebuilds a store from it, validating the free-list invariants first. The
// snapshot package builds its on-disk format on this pair.
package slab
