package slab

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidState is returned by FromState when the presented bookkeeping
// does not describe a consistent store, for example after snapshot
// corruption.
var ErrInvalidState = errors.New("slab: invalid state")

// Stats reports store bookkeeping.
//
// Size, Capacity, Free, and BytesReserved describe the current state; Grows,
// Inserts, and Erases are historical counters that survive Clear.
type Stats struct {
	Size          int
	Capacity      int
	Free          int
	BytesReserved int64
	Grows         uint64
	Inserts       uint64
	Erases        uint64
}

// Stats returns the current store statistics.
func (s *Store[T]) Stats() Stats {
	free := 0
	if len(s.slots) > 0 {
		free = len(s.slots) - 1 - s.size
	}
	return Stats{
		Size:          s.size,
		Capacity:      len(s.slots),
		Free:          free,
		BytesReserved: slotBytes[T](len(s.slots)),
		Grows:         s.grows,
		Inserts:       s.inserts,
		Erases:        s.erases,
	}
}

func (s *Store[T]) String() string {
	stats := s.Stats()
	return fmt.Sprintf(
		"Store{size: %d, capacity: %d, free: %d, reserved: %.2f KB, grows: %d}",
		stats.Size,
		stats.Capacity,
		stats.Free,
		float64(stats.BytesReserved)/1024,
		stats.Grows,
	)
}

// State is a snapshot of a store's bookkeeping: one tag word per committed
// slot plus the free-list head and live count. Together with the live
// values it fully determines the store, including the order in which free
// slots will be reused.
type State struct {
	Tags     []uint32
	FreeHead Handle
	Size     int
}

// State returns a copy of the store's bookkeeping. The tag slice is copied,
// so the state stays valid while the store keeps mutating.
func (s *Store[T]) State() State {
	tags := make([]uint32, len(s.slots))
	for i := range s.slots {
		tags[i] = s.slots[i].tag
	}
	return State{
		Tags:     tags,
		FreeHead: s.freeHead,
		Size:     s.size,
	}
}

// validateState checks that tags, freeHead, and size describe a consistent
// store: the zero slot is retired, every free-tagged slot is reachable from
// freeHead exactly once, the walk terminates at the zero sentinel, and the
// live count matches.
func validateState(tags []uint32, freeHead Handle, size int) error {
	n := len(tags)
	if n > MaxSlots {
		return fmt.Errorf("%w: capacity %d exceeds limit", ErrInvalidState, n)
	}
	if n == 0 {
		if freeHead != Nil || size != 0 {
			return fmt.Errorf("%w: empty state with nonzero bookkeeping", ErrInvalidState)
		}
		return nil
	}
	if tags[0] != 0 {
		return fmt.Errorf("%w: zero slot must be retired", ErrInvalidState)
	}

	nFree := 0
	for i := 1; i < n; i++ {
		if tags[i]&tagFreeBit != 0 {
			nFree++
		}
	}
	if size != n-1-nFree {
		return fmt.Errorf("%w: size %d does not match %d free of %d slots", ErrInvalidState, size, nFree, n)
	}

	hops := 0
	for cur := freeHead; cur != Nil; {
		if int(cur) >= n {
			return fmt.Errorf("%w: free link %d out of range", ErrInvalidState, cur)
		}
		if tags[cur]&tagFreeBit == 0 {
			return fmt.Errorf("%w: free link %d points at a live slot", ErrInvalidState, cur)
		}
		hops++
		if hops > nFree {
			return fmt.Errorf("%w: free list cycle", ErrInvalidState)
		}
		cur = Handle(tags[cur] & tagNextMask)
	}
	if hops != nFree {
		return fmt.Errorf("%w: %d free slots unreachable from free list", ErrInvalidState, nFree-hops)
	}

	return nil
}

// FromState rebuilds a store from bookkeeping captured by State and an
// iterator over the live values. The iterator must yield each live handle
// exactly once in strictly ascending order, which is what State paired with
// All produces and what the snapshot format stores.
//
// The state is fully validated before any value is placed, so a corrupt
// snapshot surfaces as ErrInvalidState instead of a store with a broken
// free list.
func FromState[T any](st State, values iter.Seq2[Handle, T], optFns ...func(o *Options)) (*Store[T], error) {
	if err := validateState(st.Tags, st.FreeHead, st.Size); err != nil {
		return nil, err
	}

	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.GrowthPolicy == nil {
		opts.GrowthPolicy = DefaultGrowthPolicy()
	}

	if len(st.Tags) == 0 {
		return New[T](optFns...)
	}

	if opts.Gate != nil {
		if err := opts.Gate.Reserve(slotBytes[T](len(st.Tags))); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGrowthDenied, err)
		}
	}

	s := &Store[T]{
		slots:    make([]slot[T], len(st.Tags)),
		freeHead: st.FreeHead,
		size:     st.Size,
		policy:   opts.GrowthPolicy,
		gate:     opts.Gate,
		grows:    1,
	}
	for i, tag := range st.Tags {
		s.slots[i].tag = tag
	}

	placed := 0
	prev := Nil
	for h, v := range values {
		if h <= prev {
			return nil, fmt.Errorf("%w: values out of order at handle %d", ErrInvalidState, h)
		}
		if int(h) >= len(s.slots) || s.slots[h].tag&tagFreeBit != 0 {
			return nil, fmt.Errorf("%w: value for non-live handle %d", ErrInvalidState, h)
		}
		s.slots[h].value = v
		prev = h
		placed++
	}
	if placed != st.Size {
		return nil, fmt.Errorf("%w: %d values for %d live slots", ErrInvalidState, placed, st.Size)
	}

	return s, nil
}
