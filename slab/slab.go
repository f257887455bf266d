package slab

import (
	"errors"
	"fmt"
	"iter"
	"unsafe"
)

// Handle is a stable index into a Store. Handles survive buffer reallocation
// and are only invalidated by erasing the slot they name (or by Clear).
//
// The zero Handle is Nil and never names a live slot.
type Handle uint32

// Nil is the invalid handle. Store reserves slot 0 at construction so that
// the free-list terminator (0) can never collide with an allocatable slot.
const Nil Handle = 0

// Tag word layout: the high bit marks a FREE slot, the low 31 bits hold the
// index of the next free slot (0 terminates the list). A tag of 0 means LIVE.
const (
	tagFreeBit  = uint32(1) << 31
	tagNextMask = tagFreeBit - 1
)

// MaxSlots is the largest committed capacity of a Store, including the
// reserved zero slot. Every slot index must fit in the 31 next-pointer bits.
const MaxSlots = 1 << 31

var (
	// ErrCapacityLimit is returned when growth would push the committed
	// capacity past MaxSlots.
	ErrCapacityLimit = errors.New("slab: capacity limit exceeded")
	// ErrGrowthDenied is returned when the memory gate vetoes a growth
	// request. The gate's own error is wrapped alongside it.
	ErrGrowthDenied = errors.New("slab: growth denied")
)

// MemoryGate admits or vetoes buffer growth before the store commits new
// slots. Reserve must not block: a store grows synchronously in the middle
// of an insert, so the gate answers immediately or vetoes.
//
// resource.Controller implements this interface.
type MemoryGate interface {
	Reserve(bytes int64) error
	Release(bytes int64)
}

// slot pairs a value with its tag word. The tag is a separate field rather
// than bits borrowed from the value, so T is unconstrained.
type slot[T any] struct {
	tag   uint32
	value T
}

// Options configures a Store.
type Options struct {
	// GrowthPolicy decides the size of each newly committed block.
	GrowthPolicy GrowthPolicy
	// Gate, if set, is consulted before every buffer growth.
	Gate MemoryGate
	// InitialCapacity pre-grows the store to at least this many slots
	// (including the reserved zero slot) at construction.
	InitialCapacity int
}

// DefaultOptions returns the default Store options.
func DefaultOptions() Options {
	return Options{
		GrowthPolicy: DefaultGrowthPolicy(),
	}
}

// Store is a growable slot container with stable integer handles.
//
// Values live in a single contiguous buffer. Free slots form an intrusive
// singly linked list threaded through the tag words, so a store with no
// erased slots spends no memory on bookkeeping beyond one tag per slot.
// Erased slots are reused in LIFO order; fresh blocks hand out ascending
// handles, so a store that never erases iterates in insertion order.
//
// A Store is not safe for concurrent use. Callers that share a store across
// goroutines must serialize access externally; the root slabgo package
// provides a locked facade.
type Store[T any] struct {
	slots    []slot[T]
	freeHead Handle
	size     int
	policy   GrowthPolicy
	gate     MemoryGate

	grows   uint64 // historical: growth events (blocks committed)
	inserts uint64 // historical: successful inserts
	erases  uint64 // historical: erases
}

// New creates a Store and commits its first block. Slot 0 of the first block
// is retired immediately as the Nil sentinel.
func New[T any](optFns ...func(o *Options)) (*Store[T], error) {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.GrowthPolicy == nil {
		opts.GrowthPolicy = DefaultGrowthPolicy()
	}

	s := &Store[T]{
		policy: opts.GrowthPolicy,
		gate:   opts.Gate,
	}

	if err := s.grow(s.policy.NextBlockSize(0)); err != nil {
		return nil, err
	}

	if opts.InitialCapacity > 0 {
		if err := s.Reserve(opts.InitialCapacity); err != nil {
			s.releaseAll()
			return nil, err
		}
	}

	return s, nil
}

// slotBytes returns the in-memory footprint of n slots, for gate accounting.
func slotBytes[T any](n int) int64 {
	return int64(n) * int64(unsafe.Sizeof(slot[T]{}))
}

// grow commits n additional slots. The new indices are chained in ascending
// order and spliced onto the tail of the free list, so fresh slots are handed
// out lowest-first even when a reservation commits several blocks before the
// first insert. The very first growth skips index 0, retiring it permanently
// as the Nil sentinel.
func (s *Store[T]) grow(n int) error {
	if n < 1 {
		n = 1
	}

	oldCap := len(s.slots)
	if oldCap >= MaxSlots {
		return ErrCapacityLimit
	}
	if n > MaxSlots-oldCap {
		n = MaxSlots - oldCap
	}
	newCap := oldCap + n

	if s.gate != nil {
		if err := s.gate.Reserve(slotBytes[T](n)); err != nil {
			return fmt.Errorf("%w: %w", ErrGrowthDenied, err)
		}
	}

	buf := make([]slot[T], newCap)
	copy(buf, s.slots)
	s.slots = buf

	first := oldCap
	if first == 0 {
		first = 1 // slot 0 is retired as the Nil sentinel
	}
	if first < newCap {
		for i := first; i < newCap-1; i++ {
			s.slots[i].tag = tagFreeBit | uint32(i+1) //nolint:gosec // i+1 < MaxSlots
		}
		s.slots[newCap-1].tag = tagFreeBit
		s.spliceFree(Handle(first)) //nolint:gosec // first < MaxSlots
	}

	s.grows++

	return nil
}

// pushFree links slot h at the head of the free list.
func (s *Store[T]) pushFree(h Handle) {
	s.slots[h].tag = tagFreeBit | uint32(s.freeHead)
	s.freeHead = h
}

// spliceFree appends a Nil-terminated, tag-linked chain starting at h to the
// tail of the free list. The tail walk costs one hop per free slot; the
// insert path never pays it, since organic growth only happens when the free
// list is empty.
func (s *Store[T]) spliceFree(h Handle) {
	if s.freeHead == Nil {
		s.freeHead = h
		return
	}

	tail := s.freeHead
	for {
		next := Handle(s.slots[tail].tag & tagNextMask)
		if next == Nil {
			break
		}
		tail = next
	}
	s.slots[tail].tag = tagFreeBit | uint32(h)
}

// take pops the next free slot, growing as needed, and marks it live.
func (s *Store[T]) take() (Handle, error) {
	for s.freeHead == Nil {
		if err := s.grow(s.policy.NextBlockSize(len(s.slots))); err != nil {
			return Nil, err
		}
	}

	h := s.freeHead
	sl := &s.slots[h]
	s.freeHead = Handle(sl.tag & tagNextMask)
	sl.tag = 0
	s.size++
	s.inserts++

	return h, nil
}

// Insert stores v in a free slot and returns its handle. The returned handle
// is never Nil. Insert fails only when growth is needed and either the gate
// vetoes it or the store is at MaxSlots.
func (s *Store[T]) Insert(v T) (Handle, error) {
	h, err := s.take()
	if err != nil {
		return Nil, err
	}
	s.slots[h].value = v
	return h, nil
}

// Emplace allocates a slot, leaves its value zeroed, and invokes init (if
// non-nil) with a pointer to it. The value is constructed in place, so large
// values skip the copy Insert would make.
func (s *Store[T]) Emplace(init func(*T)) (Handle, error) {
	h, err := s.take()
	if err != nil {
		return Nil, err
	}
	if init != nil {
		init(&s.slots[h].value)
	}
	return h, nil
}

// InsertSeq inserts every value produced by seq and returns the handles in
// order. On error the values inserted so far remain live.
func (s *Store[T]) InsertSeq(seq iter.Seq[T]) ([]Handle, error) {
	var handles []Handle
	for v := range seq {
		h, err := s.Insert(v)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Erase frees the slot named by h and pushes it onto the free list. The
// value is zeroed so references it held become collectable.
//
// Erase panics if h is not live.
func (s *Store[T]) Erase(h Handle) {
	if !s.IsLive(h) {
		panic(fmt.Sprintf("slab: erase of non-live handle %d", h))
	}

	var zero T
	s.slots[h].value = zero
	s.pushFree(h)
	s.size--
	s.erases++
}

// At returns a pointer to the value in slot h. The pointer is valid until
// the next growth, merge, or clear of the store.
//
// At panics if h is not live.
func (s *Store[T]) At(h Handle) *T {
	if !s.IsLive(h) {
		panic(fmt.Sprintf("slab: access to non-live handle %d", h))
	}
	return &s.slots[h].value
}

// Get returns a pointer to the value in slot h, or nil and false if h is not
// live. The checked twin of At.
func (s *Store[T]) Get(h Handle) (*T, bool) {
	if !s.IsLive(h) {
		return nil, false
	}
	return &s.slots[h].value, true
}

// IsLive reports whether h names a live slot.
func (s *Store[T]) IsLive(h Handle) bool {
	return h != Nil && int(h) < len(s.slots) && s.slots[h].tag&tagFreeBit == 0
}

// Contains reports whether h names a live slot owned by this store. Nil, the
// end-of-range sentinel (Capacity()), out-of-range indices, and free slots
// are all outside.
func (s *Store[T]) Contains(h Handle) bool {
	return s.IsLive(h)
}

// Size returns the number of live slots.
func (s *Store[T]) Size() int {
	return s.size
}

// Empty reports whether the store holds no live slots.
func (s *Store[T]) Empty() bool {
	return s.size == 0
}

// Capacity returns the number of committed slots, including the reserved
// zero slot.
func (s *Store[T]) Capacity() int {
	return len(s.slots)
}

// Reserve grows the store until Capacity() >= n. Blocks are committed
// through the growth policy one at a time, so the free-list order matches
// what organic growth would have produced: inserts after Reserve return
// ascending fresh handles.
func (s *Store[T]) Reserve(n int) error {
	if n > MaxSlots {
		return ErrCapacityLimit
	}
	for len(s.slots) < n {
		if err := s.grow(s.policy.NextBlockSize(len(s.slots))); err != nil {
			return err
		}
	}
	return nil
}

// releaseAll returns the whole committed buffer to the gate.
func (s *Store[T]) releaseAll() {
	if s.gate != nil && len(s.slots) > 0 {
		s.gate.Release(slotBytes[T](len(s.slots)))
	}
}

// Clear erases every live slot, releases the buffer, and resets the store to
// its freshly constructed state: a single first block with slot 0 retired.
// All previously issued handles are invalidated.
//
// Clear never asks the gate for more memory than it releases, so it cannot
// fail.
func (s *Store[T]) Clear() {
	var zero T
	for i := 1; i < len(s.slots); i++ {
		if s.slots[i].tag&tagFreeBit == 0 {
			s.slots[i].value = zero
		}
	}

	first := s.policy.NextBlockSize(0)
	if first < 1 {
		first = 1
	}
	if first > len(s.slots) {
		first = len(s.slots)
	}

	if s.gate != nil && len(s.slots) > first {
		s.gate.Release(slotBytes[T](len(s.slots) - first))
	}

	s.slots = make([]slot[T], first)
	s.freeHead = Nil
	s.size = 0
	for i := first - 1; i > 0; i-- {
		s.pushFree(Handle(i)) //nolint:gosec // i < MaxSlots
	}
}

// Assign replaces the store's contents with the given values, as if by Clear
// followed by one Insert per value. Handles issued for the new values start
// at 1 and ascend.
func (s *Store[T]) Assign(values []T) ([]Handle, error) {
	s.Clear()
	handles := make([]Handle, 0, len(values))
	for _, v := range values {
		h, err := s.Insert(v)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Merge moves every slot of other into s and resets other to a fresh empty
// store. Handles held against s remain valid unchanged; a handle h held
// against other becomes offset+h in s, where offset is the returned value
// (s's capacity before the merge).
//
// Both stores' free lists survive: other's relocated free slots are spliced
// in front of s's free list, with other's retired zero slot (now an ordinary
// slot at index offset) serving as the junction node. Gate accounting uses
// s's gate for the appended region and other's gate for the buffer other
// releases.
//
// Merge panics if other is s. It fails without modifying either store when
// the combined capacity would exceed MaxSlots or s's gate vetoes the append.
func (s *Store[T]) Merge(other *Store[T]) (Handle, error) {
	if other == s {
		panic("slab: merge of a store with itself")
	}

	oldCap := len(s.slots)
	donorCap := len(other.slots)

	if donorCap > MaxSlots-oldCap {
		return Nil, ErrCapacityLimit
	}

	if s.gate != nil {
		if err := s.gate.Reserve(slotBytes[T](donorCap)); err != nil {
			return Nil, fmt.Errorf("%w: %w", ErrGrowthDenied, err)
		}
	}

	offset := Handle(oldCap) //nolint:gosec // oldCap < MaxSlots

	buf := make([]slot[T], oldCap+donorCap)
	copy(buf, s.slots)
	copy(buf[oldCap:], other.slots)
	s.slots = buf

	// Rewrite the donor free list in place: every link shifts by offset, and
	// the old terminator (0) now points at the junction slot instead.
	for cur := other.freeHead; cur != Nil; {
		next := Handle(s.slots[offset+cur].tag & tagNextMask)
		if next == Nil {
			s.slots[offset+cur].tag = tagFreeBit | uint32(offset)
		} else {
			s.slots[offset+cur].tag = tagFreeBit | uint32(offset+next)
		}
		cur = next
	}

	// The donor's retired zero slot becomes the junction to s's old list.
	s.slots[offset].tag = tagFreeBit | uint32(s.freeHead)

	if other.freeHead != Nil {
		s.freeHead = offset + other.freeHead
	} else {
		s.freeHead = offset
	}

	s.size += other.size
	s.grows++

	other.Clear()

	return offset, nil
}
