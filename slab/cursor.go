package slab

import (
	"fmt"
	"iter"
)

// Cursor walks the live slots of a Store in index order, skipping free
// slots. The forward end of the range is Capacity(), the backward end is
// Nil; a cursor parked on either sentinel is not Valid.
//
// Cursors observe the store they were created from: erasing the slot a
// cursor is parked on invalidates the cursor's position but not the cursor,
// and Next/Prev move on to the nearest live slot as usual.
type Cursor[T any] struct {
	store *Store[T]
	h     Handle
}

// Begin returns a cursor parked on the first live slot, or on the end
// sentinel when the store is empty.
func (s *Store[T]) Begin() Cursor[T] {
	c := Cursor[T]{store: s, h: Nil}
	c.Next()
	return c
}

// End returns a cursor parked on the end-of-range sentinel (Capacity()).
func (s *Store[T]) End() Cursor[T] {
	return Cursor[T]{store: s, h: Handle(len(s.slots))} //nolint:gosec // capacity <= MaxSlots
}

// CursorAt returns a cursor parked on h, which may name any slot: live,
// free, Nil, or the end sentinel. Handles past the end are clamped to the
// end sentinel. Use Valid to test whether the cursor is on a live slot.
func (s *Store[T]) CursorAt(h Handle) Cursor[T] {
	if int(h) > len(s.slots) {
		h = Handle(len(s.slots)) //nolint:gosec // capacity <= MaxSlots
	}
	return Cursor[T]{store: s, h: h}
}

// Valid reports whether the cursor is parked on a live slot. Value receiver,
// so it can be called on a cursor expression directly.
func (c Cursor[T]) Valid() bool {
	return c.store != nil && c.store.IsLive(c.h)
}

// Handle returns the handle the cursor is parked on. On the forward
// sentinel this is Capacity(); on the backward sentinel it is Nil.
func (c Cursor[T]) Handle() Handle {
	return c.h
}

// Value returns a pointer to the value under the cursor.
//
// Value panics if the cursor is not Valid.
func (c Cursor[T]) Value() *T {
	if !c.Valid() {
		panic(fmt.Sprintf("slab: cursor value at non-live handle %d", c.h))
	}
	return &c.store.slots[c.h].value
}

// Next advances to the next live slot and reports whether one was found.
// When none remains the cursor parks on the end sentinel.
func (c *Cursor[T]) Next() bool {
	n := len(c.store.slots)
	start := int(c.h) + 1
	if start < 1 {
		start = 1
	}
	for i := start; i < n; i++ {
		if c.store.slots[i].tag&tagFreeBit == 0 {
			c.h = Handle(i) //nolint:gosec // i < MaxSlots
			return true
		}
	}
	c.h = Handle(n) //nolint:gosec // capacity <= MaxSlots
	return false
}

// Prev steps back to the previous live slot and reports whether one was
// found. When none remains the cursor parks on Nil.
func (c *Cursor[T]) Prev() bool {
	start := int(c.h) - 1
	if start >= len(c.store.slots) {
		start = len(c.store.slots) - 1
	}
	for i := start; i >= 1; i-- {
		if c.store.slots[i].tag&tagFreeBit == 0 {
			c.h = Handle(i) //nolint:gosec // i < MaxSlots
			return true
		}
	}
	c.h = Nil
	return false
}

// All returns an iterator over the live slots in ascending handle order.
// The yielded pointers are valid until the store next grows, merges, or
// clears; the store must not be mutated while iterating.
func (s *Store[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := 1; i < len(s.slots); i++ {
			if s.slots[i].tag&tagFreeBit != 0 {
				continue
			}
			if !yield(Handle(i), &s.slots[i].value) { //nolint:gosec // i < MaxSlots
				return
			}
		}
	}
}

// Backward returns an iterator over the live slots in descending handle
// order, with the same validity rules as All.
func (s *Store[T]) Backward() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := len(s.slots) - 1; i >= 1; i-- {
			if s.slots[i].tag&tagFreeBit != 0 {
				continue
			}
			if !yield(Handle(i), &s.slots[i].value) { //nolint:gosec // i < MaxSlots
				return
			}
		}
	}
}

// Handles returns an iterator over the live handles in ascending order.
func (s *Store[T]) Handles() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for i := 1; i < len(s.slots); i++ {
			if s.slots[i].tag&tagFreeBit != 0 {
				continue
			}
			if !yield(Handle(i)) { //nolint:gosec // i < MaxSlots
				return
			}
		}
	}
}
