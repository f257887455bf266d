package slabgo

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/slabgo/codec"
	"github.com/hupe1980/slabgo/resource"
	"github.com/hupe1980/slabgo/slab"
	"github.com/hupe1980/slabgo/snapshot"
	"github.com/hupe1980/slabgo/wal"
)

// Handle identifies a slot in the store. A handle stays valid for the life
// of the value it names, across any amount of growth; see the slab package
// for the full contract.
type Handle = slab.Handle

// Nil is the reserved zero handle. It never names a live value.
const Nil = slab.Nil

// Slab is a durable compact slot store. It wraps slab.Store with handle
// checking, a mutex for concurrent use, and optional write-ahead logging
// plus snapshots for crash recovery.
//
// Mutations are applied to the store first and logged after; the WAL
// auto-checkpoint runs inside the logging call, so a snapshot it takes
// always contains every entry it claims to cover.
type Slab[T any] struct {
	mu           sync.Mutex
	store        *slab.Store[T]
	wal          *wal.WAL
	codec        codec.Codec
	metrics      MetricsCollector
	logger       *Logger
	snapshotPath string // Path for auto-checkpoint snapshots
	compression  snapshot.CompressionType
	controller   *resource.Controller
	coveredSeq   uint64 // WAL sequence covered by the last snapshot
	closed       bool
}

// New creates an empty Slab.
//
// With no options the store is purely in-memory: no WAL, no snapshots.
// See WithWAL and WithSnapshotPath for durability.
func New[T any](optFns ...Option) (*Slab[T], error) {
	opts := applyOptions(optFns)

	store, err := slab.New[T](opts.storeOptions()...)
	if err != nil {
		return nil, translateError(err)
	}

	return assemble(store, 0, "", opts)
}

// NewFromFile loads a snapshot from a file.
//
// The records are decoded with the codec named in the snapshot header;
// WithCodec selects the codec for subsequent WAL and snapshot writes.
// WithGrowthPolicy and WithResourceController configure the rebuilt store.
//
// If WAL is enabled, call RecoverFromWAL afterwards to replay entries
// logged after the snapshot was taken. Unless WithSnapshotPath overrides
// it, auto-checkpoints rewrite the loaded file.
func NewFromFile[T any](filename string, optFns ...Option) (*Slab[T], error) {
	opts := applyOptions(optFns)

	store, hdr, err := snapshot.LoadFromFile[T](filename, func(o *snapshot.ReadOptions) {
		o.Store = opts.storeOptions()
	})
	if err != nil {
		return nil, translateError(err)
	}

	return assemble(store, hdr.WALSeq, filename, opts)
}

func assemble[T any](store *slab.Store[T], coveredSeq uint64, defaultSnapshotPath string, opts options) (*Slab[T], error) {
	snapshotPath := opts.snapshotPath
	if snapshotPath == "" {
		snapshotPath = defaultSnapshotPath
	}

	db := &Slab[T]{
		store:        store,
		codec:        opts.codec,
		metrics:      opts.metricsCollector,
		logger:       opts.logger,
		snapshotPath: snapshotPath,
		compression:  opts.compression,
		controller:   opts.controller,
		coveredSeq:   coveredSeq,
	}

	if opts.walPath != "" {
		walOptFns := append([]func(*wal.Options){
			func(o *wal.Options) {
				o.Path = opts.walPath
			},
		}, opts.walOptions...)

		w, err := wal.New(walOptFns...)
		if err != nil {
			return nil, fmt.Errorf("slabgo: failed to create WAL: %w", err)
		}

		db.wal = w
		w.SetCheckpointCallback(db.autoCheckpoint)
	}

	return db, nil
}

// Insert adds a value and returns its handle.
func (db *Slab[T]) Insert(ctx context.Context, value T) (Handle, error) {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	h, err := db.insertLocked(value)
	duration := time.Since(start)
	db.metrics.RecordInsert(duration, err)
	db.logger.LogInsert(ctx, h, err)
	return h, err
}

func (db *Slab[T]) insertLocked(value T) (Handle, error) {
	if db.closed {
		return Nil, ErrClosed
	}

	var payload []byte
	if db.wal != nil {
		var err error
		payload, err = db.codec.Marshal(value)
		if err != nil {
			return Nil, fmt.Errorf("encode value: %w", err)
		}
	}

	h, err := db.store.Insert(value)
	if err != nil {
		return Nil, err
	}

	if db.wal != nil {
		if err := db.wal.LogInsert(h, payload); err != nil {
			db.store.Erase(h)
			return Nil, translateError(err)
		}
	}

	return h, nil
}

// BatchInsert inserts values and returns their handles in input order.
// The batch is all-or-nothing: on error, inserts already applied are rolled
// back. With WAL enabled the whole batch is flushed and synced once, which
// amortizes the durability cost across all values.
func (db *Slab[T]) BatchInsert(ctx context.Context, values []T) ([]Handle, error) {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	handles, err := db.batchInsertLocked(values)
	duration := time.Since(start)

	failed := 0
	if err != nil {
		failed = len(values)
	}
	db.metrics.RecordBatchInsert(len(values), failed, duration)
	db.logger.LogBatchInsert(ctx, len(values), failed)
	return handles, err
}

func (db *Slab[T]) batchInsertLocked(values []T) ([]Handle, error) {
	if db.closed {
		return nil, ErrClosed
	}

	var payloads [][]byte
	if db.wal != nil {
		payloads = make([][]byte, len(values))
		for i := range values {
			p, err := db.codec.Marshal(values[i])
			if err != nil {
				return nil, fmt.Errorf("encode value %d: %w", i, err)
			}
			payloads[i] = p
		}
	}

	handles := make([]Handle, 0, len(values))

	// Freeing in reverse restores the free list to its pre-batch order.
	rollback := func() {
		for i := len(handles) - 1; i >= 0; i-- {
			db.store.Erase(handles[i])
		}
	}

	for i := range values {
		h, err := db.store.Insert(values[i])
		if err != nil {
			rollback()
			return nil, err
		}
		handles = append(handles, h)
	}

	if db.wal != nil {
		if err := db.wal.LogBatchInsert(handles, payloads); err != nil {
			rollback()
			return nil, translateError(err)
		}
	}

	return handles, nil
}

// Update overwrites the value at h.
func (db *Slab[T]) Update(ctx context.Context, h Handle, value T) error {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.updateLocked(h, value)
	duration := time.Since(start)
	db.metrics.RecordUpdate(duration, err)
	db.logger.LogUpdate(ctx, h, err)
	return err
}

func (db *Slab[T]) updateLocked(h Handle, value T) error {
	if db.closed {
		return ErrClosed
	}

	ptr, ok := db.store.Get(h)
	if !ok {
		return ErrHandleNotLive
	}

	var payload []byte
	if db.wal != nil {
		var err error
		payload, err = db.codec.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode value: %w", err)
		}
	}

	prev := *ptr
	*ptr = value

	if db.wal != nil {
		if err := db.wal.LogUpdate(h, payload); err != nil {
			*ptr = prev
			return translateError(err)
		}
	}

	return nil
}

// Erase frees the slot at h. The handle may be reused by a later insert.
func (db *Slab[T]) Erase(ctx context.Context, h Handle) error {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.eraseLocked(h)
	duration := time.Since(start)
	db.metrics.RecordErase(duration, err)
	db.logger.LogErase(ctx, h, err)
	return err
}

func (db *Slab[T]) eraseLocked(h Handle) error {
	if db.closed {
		return ErrClosed
	}

	ptr, ok := db.store.Get(h)
	if !ok {
		return ErrHandleNotLive
	}

	var prev T
	if db.wal != nil {
		prev = *ptr
	}

	db.store.Erase(h)

	if db.wal != nil {
		if err := db.wal.LogErase(h); err != nil {
			// The freed slot is the free-list head, so the reinsert
			// lands back on h.
			_, _ = db.store.Insert(prev)
			return translateError(err)
		}
	}

	return nil
}

// Get returns a copy of the value at h.
func (db *Slab[T]) Get(h Handle) (T, error) {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	var zero T
	if db.closed {
		return zero, ErrClosed
	}

	ptr, ok := db.store.Get(h)

	var err error
	if !ok {
		err = ErrNotFound
	}
	db.metrics.RecordLookup(time.Since(start), err)

	if err != nil {
		return zero, err
	}
	return *ptr, nil
}

// At returns a pointer to the value at h. The pointer is only valid until
// the store next grows, merges, or clears: growth reallocates the backing
// buffer and relocates every value. Hold the handle across mutations, not
// the pointer.
//
// Writes through the pointer bypass the WAL. Use Update when durability
// matters.
func (db *Slab[T]) At(h Handle) (*T, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrClosed
	}

	ptr, ok := db.store.Get(h)
	if !ok {
		return nil, ErrHandleNotLive
	}
	return ptr, nil
}

// Contains reports whether h names a live value.
func (db *Slab[T]) Contains(h Handle) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.IsLive(h)
}

// Len returns the number of live values.
func (db *Slab[T]) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Size()
}

// Each calls fn for every live value in handle order until fn returns
// false. The store is locked for the duration; fn must not call back into
// db.
func (db *Slab[T]) Each(fn func(h Handle, value *T) bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return
	}

	for h, v := range db.store.All() {
		if !fn(h, v) {
			return
		}
	}
}

// Clear erases every live value and invalidates all handles.
func (db *Slab[T]) Clear(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	db.store.Clear()

	var err error
	if db.wal != nil {
		err = translateError(db.wal.LogClear())
	}
	db.logger.LogClear(ctx, err)
	return err
}

// Assign replaces the store's contents with the given values, as if by
// Clear followed by one insert per value. Handles for the new values start
// at 1 and ascend.
func (db *Slab[T]) Assign(ctx context.Context, values []T) ([]Handle, error) {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	handles, err := db.assignLocked(values)
	duration := time.Since(start)

	failed := 0
	if err != nil {
		failed = len(values)
	}
	db.metrics.RecordBatchInsert(len(values), failed, duration)
	db.logger.LogBatchInsert(ctx, len(values), failed)
	return handles, err
}

func (db *Slab[T]) assignLocked(values []T) ([]Handle, error) {
	if db.closed {
		return nil, ErrClosed
	}

	var payloads [][]byte
	if db.wal != nil {
		payloads = make([][]byte, len(values))
		for i := range values {
			p, err := db.codec.Marshal(values[i])
			if err != nil {
				return nil, fmt.Errorf("encode value %d: %w", i, err)
			}
			payloads[i] = p
		}
	}

	db.store.Clear()

	if db.wal != nil {
		if err := db.wal.LogClear(); err != nil {
			return nil, translateError(err)
		}
	}

	handles, err := db.store.InsertSeq(slices.Values(values))
	if err != nil {
		for i := len(handles) - 1; i >= 0; i-- {
			db.store.Erase(handles[i])
		}
		return nil, err
	}

	if db.wal != nil {
		if err := db.wal.LogBatchInsert(handles, payloads); err != nil {
			for i := len(handles) - 1; i >= 0; i-- {
				db.store.Erase(handles[i])
			}
			return nil, translateError(err)
		}
	}

	return handles, nil
}

// autoCheckpoint is the WAL auto-checkpoint callback. It runs inside a
// logging call, after the triggering entry is durable and while the facade
// lock is still held by the triggering operation, so it must not take
// db.mu. Failures are logged rather than returned: the operation that
// crossed the threshold already committed, and the next crossing retries.
func (db *Slab[T]) autoCheckpoint() error {
	if err := db.checkpointLocked(); err != nil {
		db.logger.LogCheckpoint(context.Background(), db.coveredSeq, err)
	}
	return nil
}

// checkpointLocked saves a snapshot to the configured path and truncates
// the WAL. Callers hold db.mu.
func (db *Slab[T]) checkpointLocked() error {
	if db.snapshotPath == "" {
		// No snapshot path configured - the caller handles checkpointing
		// manually via SaveToFile + Checkpoint.
		return nil
	}

	if err := db.saveToFileLocked(db.snapshotPath); err != nil {
		return fmt.Errorf("checkpoint: failed to save snapshot: %w", err)
	}

	if db.wal != nil {
		if err := db.wal.Checkpoint(); err != nil {
			return fmt.Errorf("checkpoint: failed to truncate WAL: %w", err)
		}
	}

	return nil
}

// Checkpoint writes a checkpoint marker and truncates the WAL.
// Call it after a successful SaveToFile; recovery replays only entries
// logged after the last saved snapshot.
func (db *Slab[T]) Checkpoint() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	if db.wal == nil {
		return nil
	}

	return translateError(db.wal.Checkpoint())
}

// SaveToFile saves a snapshot of the store to a file.
// If WAL is enabled, call Checkpoint afterwards to truncate the log, or
// configure WithSnapshotPath with auto-checkpoint thresholds instead.
func (db *Slab[T]) SaveToFile(filename string) error {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	err := db.saveToFileLocked(filename)
	duration := time.Since(start)
	db.metrics.RecordSnapshot(duration, err)
	db.logger.LogSnapshot(context.Background(), filename, err)
	return err
}

func (db *Slab[T]) saveToFileLocked(filename string) error {
	var seq uint64
	if db.wal != nil {
		seq = db.wal.Seq()
	}

	err := snapshot.SaveToFile(filename, db.store, func(o *snapshot.Options) {
		o.Codec = db.codec
		o.Compression = db.compression
		o.WALSeq = seq
	})
	if err != nil {
		return err
	}

	db.coveredSeq = seq
	return nil
}

// SaveToWriter writes a snapshot of the store to w.
// When a resource controller is configured, writes are rate limited
// against its I/O budget.
func (db *Slab[T]) SaveToWriter(ctx context.Context, w io.Writer) error {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	var seq uint64
	if db.wal != nil {
		seq = db.wal.Seq()
	}

	var out io.Writer = w
	if db.controller != nil {
		out = resource.NewRateLimitedWriter(ctx, db.controller, w)
	}

	err := snapshot.Write(out, db.store, func(o *snapshot.Options) {
		o.Codec = db.codec
		o.Compression = db.compression
		o.WALSeq = seq
	})
	db.metrics.RecordSnapshot(time.Since(start), err)
	return translateError(err)
}

// Stats describes the current shape of the store.
type Stats struct {
	Size     int    // live values
	Capacity int    // committed slots, including the reserved zero slot
	Free     int    // free slots available without growing
	WALSeq   uint64 // highest WAL sequence assigned, 0 without WAL
}

// Stats returns statistics about the store.
func (db *Slab[T]) Stats() Stats {
	db.mu.Lock()
	defer db.mu.Unlock()

	st := Stats{
		Size:     db.store.Size(),
		Capacity: db.store.Capacity(),
	}
	if st.Capacity > 0 {
		st.Free = st.Capacity - st.Size - 1
	}
	if db.wal != nil {
		st.WALSeq = db.wal.Seq()
	}
	return st
}

// RecoverFromWAL replays log entries recorded after the loaded snapshot.
// Call it after NewFromFile (or New) with WAL enabled, before any other
// operations. When a snapshot path is configured, a successful recovery
// folds the replayed tail into a fresh snapshot so the next start replays
// from a clean base.
func (db *Slab[T]) RecoverFromWAL(ctx context.Context) error {
	start := time.Now()

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}

	if db.wal == nil {
		return nil
	}

	entries := 0
	err := db.wal.Replay(db.coveredSeq, func(e wal.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := db.applyEntry(e); err != nil {
			return err
		}
		entries++
		return nil
	})

	duration := time.Since(start)
	db.metrics.RecordReplay(entries, duration, err)
	db.logger.LogRecovery(ctx, entries, err)
	if err != nil {
		return translateError(err)
	}

	if entries > 0 {
		if err := db.checkpointLocked(); err != nil {
			// Recovery itself succeeded; the fold is retried on the
			// next checkpoint.
			db.logger.LogCheckpoint(ctx, db.coveredSeq, err)
		}
	}

	return nil
}

func (db *Slab[T]) applyEntry(e wal.Entry) error {
	switch e.Type {
	case wal.EntryInsert:
		var value T
		if err := db.codec.Unmarshal(e.Payload, &value); err != nil {
			return fmt.Errorf("decode entry %d: %w", e.Seq, err)
		}

		h, err := db.store.Insert(value)
		if err != nil {
			return err
		}

		if h != e.Handle {
			return &ErrReplayDivergence{Seq: e.Seq, Logged: e.Handle, Got: h}
		}
	case wal.EntryUpdate:
		if !db.store.IsLive(e.Handle) {
			return &ErrReplayDivergence{Seq: e.Seq, Logged: e.Handle, Got: Nil}
		}

		var value T
		if err := db.codec.Unmarshal(e.Payload, &value); err != nil {
			return fmt.Errorf("decode entry %d: %w", e.Seq, err)
		}
		*db.store.At(e.Handle) = value
	case wal.EntryErase:
		if !db.store.IsLive(e.Handle) {
			return &ErrReplayDivergence{Seq: e.Seq, Logged: e.Handle, Got: Nil}
		}
		db.store.Erase(e.Handle)
	case wal.EntryClear:
		db.store.Clear()
	case wal.EntryCheckpoint:
		// Durability marker only.
	}

	return nil
}
