package keyed

import (
	"cmp"
	"iter"

	"github.com/hupe1980/slabgo/slab"
)

// Store pairs a slab with a key index: values live in index-stable slots
// and are additionally reachable by ordered key. Insert and Delete keep
// the two views consistent; a handle returned by Insert stays valid until
// its key is deleted or replaced.
//
// A Store is not safe for concurrent use.
type Store[K cmp.Ordered, V any] struct {
	slots *slab.Store[V]
	index *Index[K]
}

// New creates an empty keyed store. Options apply to the underlying slab.
func New[K cmp.Ordered, V any](optFns ...func(o *slab.Options)) (*Store[K, V], error) {
	slots, err := slab.New[V](optFns...)
	if err != nil {
		return nil, err
	}

	return &Store[K, V]{slots: slots, index: NewIndex[K]()}, nil
}

// Wrap derives a keyed store from an existing slab, filing every live
// value under keyOf(value). When two slots carry the same key the higher
// handle wins and the losing slot is erased. Wrap is how a keyed store
// comes back from a snapshot: the slab is restored, the index rebuilt.
func Wrap[K cmp.Ordered, V any](slots *slab.Store[V], keyOf func(*V) K) *Store[K, V] {
	ix := NewIndex[K]()

	var displaced []slab.Handle
	for h, v := range slots.All() {
		if prev, had := ix.Upsert(keyOf(v), h); had {
			displaced = append(displaced, prev)
		}
	}
	for _, h := range displaced {
		slots.Erase(h)
	}

	return &Store[K, V]{slots: slots, index: ix}
}

// Insert files v under key and returns the handle of its slot. A key
// already present is replaced: its old slot is erased and a fresh handle
// returned.
func (s *Store[K, V]) Insert(key K, v V) (slab.Handle, error) {
	h, err := s.slots.Insert(v)
	if err != nil {
		return slab.Nil, err
	}
	if prev, had := s.index.Upsert(key, h); had {
		s.slots.Erase(prev)
	}

	return h, nil
}

// Get returns the value filed under key. The pointer is valid until the
// slab next grows, merges, or clears.
func (s *Store[K, V]) Get(key K) (*V, bool) {
	h, ok := s.index.Lookup(key)
	if !ok {
		return nil, false
	}

	return s.slots.At(h), true
}

// Handle returns the slot handle filed under key.
func (s *Store[K, V]) Handle(key K) (slab.Handle, bool) {
	return s.index.Lookup(key)
}

// At returns the value in slot h regardless of its key. It panics when h
// is not live.
func (s *Store[K, V]) At(h slab.Handle) *V {
	return s.slots.At(h)
}

// Delete unfiles key and erases its slot, reporting whether it existed.
func (s *Store[K, V]) Delete(key K) bool {
	h, ok := s.index.Delete(key)
	if !ok {
		return false
	}
	s.slots.Erase(h)

	return true
}

// Len returns the number of keys.
func (s *Store[K, V]) Len() int {
	return s.index.Len()
}

// Min returns the entry with the smallest key.
func (s *Store[K, V]) Min() (K, *V, bool) {
	k, h, ok := s.index.Min()
	if !ok {
		return k, nil, false
	}

	return k, s.slots.At(h), true
}

// Max returns the entry with the largest key.
func (s *Store[K, V]) Max() (K, *V, bool) {
	k, h, ok := s.index.Max()
	if !ok {
		return k, nil, false
	}

	return k, s.slots.At(h), true
}

// Clear erases every slot and unmaps every key.
func (s *Store[K, V]) Clear() {
	s.slots.Clear()
	s.index.Clear()
}

// Slab exposes the underlying slot store for snapshotting and handle
// iteration. Mutating it directly desyncs the index; rebuild with Wrap
// afterwards.
func (s *Store[K, V]) Slab() *slab.Store[V] {
	return s.slots
}

// Ascend returns an iterator over all entries in ascending key order.
// The store must not be mutated while iterating.
func (s *Store[K, V]) Ascend() iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		for k, h := range s.index.Ascend() {
			if !yield(k, s.slots.At(h)) {
				return
			}
		}
	}
}

// AscendRange returns an iterator over the entries with from <= key < to
// in ascending key order.
func (s *Store[K, V]) AscendRange(from, to K) iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		for k, h := range s.index.AscendRange(from, to) {
			if !yield(k, s.slots.At(h)) {
				return
			}
		}
	}
}
