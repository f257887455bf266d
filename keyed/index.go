package keyed

import (
	"cmp"
	"iter"

	"github.com/google/btree"

	"github.com/hupe1980/slabgo/slab"
)

// btreeDegree is the branching factor of the key tree.
const btreeDegree = 32

type item[K cmp.Ordered] struct {
	key    K
	handle slab.Handle
}

// Index is an ordered secondary index mapping keys to slot handles.
// The slab owns the values; the index owns the key order.
//
// An Index is not safe for concurrent use.
type Index[K cmp.Ordered] struct {
	tree *btree.BTreeG[item[K]]
}

// NewIndex creates an empty index.
func NewIndex[K cmp.Ordered]() *Index[K] {
	return &Index[K]{
		tree: btree.NewG(btreeDegree, func(a, b item[K]) bool {
			return a.key < b.key
		}),
	}
}

// Upsert maps key to h and returns the handle it previously mapped to,
// if any.
func (ix *Index[K]) Upsert(key K, h slab.Handle) (slab.Handle, bool) {
	prev, had := ix.tree.ReplaceOrInsert(item[K]{key: key, handle: h})
	return prev.handle, had
}

// Lookup returns the handle mapped to key.
func (ix *Index[K]) Lookup(key K) (slab.Handle, bool) {
	it, ok := ix.tree.Get(item[K]{key: key})
	return it.handle, ok
}

// Delete unmaps key and returns the handle it mapped to, if any.
func (ix *Index[K]) Delete(key K) (slab.Handle, bool) {
	it, ok := ix.tree.Delete(item[K]{key: key})
	return it.handle, ok
}

// Has reports whether key is mapped.
func (ix *Index[K]) Has(key K) bool {
	return ix.tree.Has(item[K]{key: key})
}

// Len returns the number of mapped keys.
func (ix *Index[K]) Len() int {
	return ix.tree.Len()
}

// Min returns the smallest mapped key and its handle.
func (ix *Index[K]) Min() (K, slab.Handle, bool) {
	it, ok := ix.tree.Min()
	return it.key, it.handle, ok
}

// Max returns the largest mapped key and its handle.
func (ix *Index[K]) Max() (K, slab.Handle, bool) {
	it, ok := ix.tree.Max()
	return it.key, it.handle, ok
}

// Clear unmaps all keys.
func (ix *Index[K]) Clear() {
	ix.tree.Clear(false)
}

// Ascend returns an iterator over all entries in ascending key order.
func (ix *Index[K]) Ascend() iter.Seq2[K, slab.Handle] {
	return func(yield func(K, slab.Handle) bool) {
		ix.tree.Ascend(func(it item[K]) bool {
			return yield(it.key, it.handle)
		})
	}
}

// Descend returns an iterator over all entries in descending key order.
func (ix *Index[K]) Descend() iter.Seq2[K, slab.Handle] {
	return func(yield func(K, slab.Handle) bool) {
		ix.tree.Descend(func(it item[K]) bool {
			return yield(it.key, it.handle)
		})
	}
}

// AscendRange returns an iterator over the entries with from <= key < to
// in ascending key order.
func (ix *Index[K]) AscendRange(from, to K) iter.Seq2[K, slab.Handle] {
	return func(yield func(K, slab.Handle) bool) {
		ix.tree.AscendRange(item[K]{key: from}, item[K]{key: to}, func(it item[K]) bool {
			return yield(it.key, it.handle)
		})
	}
}
