package slab

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, optFns ...func(o *Options)) *Store[int] {
	t.Helper()
	s, err := New[int](optFns...)
	require.NoError(t, err)
	return s
}

func smallBlocks(o *Options) {
	o.GrowthPolicy = ConstantGrowth{Block: 4}
}

func collect(s *Store[int]) []Handle {
	var hs []Handle
	for h := range s.All() {
		hs = append(hs, h)
	}
	return hs
}

func TestNew(t *testing.T) {
	s := newStore(t)

	assert.Equal(t, 0, s.Size())
	assert.True(t, s.Empty())
	assert.Equal(t, DefaultFirstBlockSize, s.Capacity())
	assert.False(t, s.IsLive(Nil))
	assert.False(t, s.Contains(Nil))
}

func TestInsertHandlesAscendFromOne(t *testing.T) {
	s := newStore(t)

	for want := 1; want <= 100; want++ {
		h, err := s.Insert(want * 10)
		require.NoError(t, err)
		assert.Equal(t, Handle(want), h)
	}
	assert.Equal(t, 100, s.Size())
}

func TestInsertRoundTrip(t *testing.T) {
	s := newStore(t)

	h, err := s.Insert(42)
	require.NoError(t, err)
	require.NotEqual(t, Nil, h)

	assert.Equal(t, 42, *s.At(h))

	v, ok := s.Get(h)
	require.True(t, ok)
	assert.Equal(t, 42, *v)

	*s.At(h) = 43
	assert.Equal(t, 43, *s.At(h))
}

func TestHandlesStableAcrossGrowth(t *testing.T) {
	s := newStore(t, smallBlocks)

	const n = 1000
	handles := make([]Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := s.Insert(i)
		require.NoError(t, err)
		handles = append(handles, h)
	}

	// Many reallocations happened along the way; every handle must still
	// resolve to the value it was issued for.
	require.Greater(t, s.Stats().Grows, uint64(10))
	for i, h := range handles {
		assert.Equal(t, i, *s.At(h))
	}
}

func TestHandlesDistinctAndNonZero(t *testing.T) {
	s := newStore(t, smallBlocks)

	seen := make(map[Handle]bool)
	for i := 0; i < 500; i++ {
		h, err := s.Insert(i)
		require.NoError(t, err)
		require.NotEqual(t, Nil, h)
		require.False(t, seen[h], "handle %d issued twice", h)
		seen[h] = true
	}
}

func TestEraseThenInsertReusesSlot(t *testing.T) {
	s := newStore(t)

	h1, err := s.Insert(1)
	require.NoError(t, err)
	h2, err := s.Insert(2)
	require.NoError(t, err)
	_, err = s.Insert(3)
	require.NoError(t, err)

	s.Erase(h1)
	s.Erase(h2)

	// LIFO reuse: the most recently erased slot comes back first.
	r1, err := s.Insert(20)
	require.NoError(t, err)
	assert.Equal(t, h2, r1)

	r2, err := s.Insert(10)
	require.NoError(t, err)
	assert.Equal(t, h1, r2)

	// Free list exhausted, next insert gets a fresh slot.
	h4, err := s.Insert(4)
	require.NoError(t, err)
	assert.Equal(t, Handle(4), h4)
}

func TestEraseReinsertReusesFreedHandle(t *testing.T) {
	s := newStore(t, smallBlocks)

	for i := 1; i <= 5; i++ {
		h, err := s.Insert(i * 10)
		require.NoError(t, err)
		require.Equal(t, Handle(i), h)
	}

	s.Erase(3)

	// Freed slots are reused LIFO, so the next insert lands on handle 3.
	h, err := s.Insert(99)
	require.NoError(t, err)
	assert.Equal(t, Handle(3), h)

	assert.Equal(t, 5, s.Size())
	assert.Equal(t, 99, *s.At(3))
}

func TestInsertionOrderIteration(t *testing.T) {
	s := newStore(t, smallBlocks)

	var want []int
	for i := 0; i < 50; i++ {
		_, err := s.Insert(i)
		require.NoError(t, err)
		want = append(want, i)
	}

	var got []int
	for _, v := range s.All() {
		got = append(got, *v)
	}
	assert.Equal(t, want, got)
}

func TestIterationSkipsFreeSlots(t *testing.T) {
	s := newStore(t)

	handles := make([]Handle, 0, 20)
	for i := 0; i < 20; i++ {
		h, err := s.Insert(i)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for i, h := range handles {
		if i%2 == 1 {
			s.Erase(h)
		}
	}

	var got []Handle
	for h, v := range s.All() {
		got = append(got, h)
		assert.Equal(t, int(h)-1, *v)
	}

	var want []Handle
	for i, h := range handles {
		if i%2 == 0 {
			want = append(want, h)
		}
	}
	assert.Equal(t, want, got)

	var back []Handle
	for h := range s.Backward() {
		back = append(back, h)
	}
	slices.Reverse(back)
	assert.Equal(t, want, back)
}

func TestSizeAccounting(t *testing.T) {
	s := newStore(t)

	h1, err := s.Insert(1)
	require.NoError(t, err)
	h2, err := s.Insert(2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Size())

	s.Erase(h1)
	assert.Equal(t, 1, s.Size())
	assert.False(t, s.IsLive(h1))
	assert.True(t, s.IsLive(h2))

	s.Erase(h2)
	assert.Equal(t, 0, s.Size())
	assert.True(t, s.Empty())
}

// Interleaved inserts and erases with LIFO reuse checks at every step.
func TestInsertEraseInterleaved(t *testing.T) {
	s := newStore(t, smallBlocks)

	live := make(map[Handle]int)
	for i := 0; i < 10; i++ {
		h, err := s.Insert(i)
		require.NoError(t, err)
		live[h] = i
	}

	s.Erase(Handle(3))
	s.Erase(Handle(7))
	delete(live, Handle(3))
	delete(live, Handle(7))

	h, err := s.Insert(70)
	require.NoError(t, err)
	require.Equal(t, Handle(7), h)
	live[h] = 70

	h, err = s.Insert(30)
	require.NoError(t, err)
	require.Equal(t, Handle(3), h)
	live[h] = 30

	h, err = s.Insert(10)
	require.NoError(t, err)
	require.Equal(t, Handle(11), h)
	live[h] = 10

	require.Equal(t, len(live), s.Size())
	for h, want := range live {
		assert.Equal(t, want, *s.At(h))
	}

	var handles []Handle
	for h := range s.Handles() {
		handles = append(handles, h)
		assert.Equal(t, live[h], *s.At(h))
	}
	assert.Len(t, handles, len(live))
	assert.True(t, slices.IsSorted(handles))
}

func TestEmplace(t *testing.T) {
	type record struct {
		id   int
		name string
	}

	s, err := New[record]()
	require.NoError(t, err)

	h, err := s.Emplace(func(r *record) {
		r.id = 7
		r.name = "seven"
	})
	require.NoError(t, err)
	assert.Equal(t, record{id: 7, name: "seven"}, *s.At(h))

	// A nil initializer leaves the slot zeroed.
	h2, err := s.Emplace(nil)
	require.NoError(t, err)
	assert.Equal(t, record{}, *s.At(h2))
}

func TestEmplaceReusedSlotIsZeroed(t *testing.T) {
	s, err := New[[]byte]()
	require.NoError(t, err)

	h, err := s.Insert([]byte("occupant"))
	require.NoError(t, err)
	s.Erase(h)

	h2, err := s.Emplace(nil)
	require.NoError(t, err)
	require.Equal(t, h, h2)
	assert.Nil(t, *s.At(h2))
}

func TestInsertSeq(t *testing.T) {
	s := newStore(t)

	handles, err := s.InsertSeq(slices.Values([]int{10, 20, 30}))
	require.NoError(t, err)
	require.Len(t, handles, 3)
	for i, h := range handles {
		assert.Equal(t, (i+1)*10, *s.At(h))
	}
}

func TestContractPanics(t *testing.T) {
	s := newStore(t)

	h, err := s.Insert(1)
	require.NoError(t, err)
	s.Erase(h)

	assert.Panics(t, func() { s.Erase(h) })
	assert.Panics(t, func() { s.Erase(Nil) })
	assert.Panics(t, func() { s.Erase(Handle(s.Capacity())) })
	assert.Panics(t, func() { s.At(h) })
	assert.Panics(t, func() { s.At(Nil) })
	assert.Panics(t, func() { _, _ = s.Merge(s) })
}

func TestClear(t *testing.T) {
	s := newStore(t, smallBlocks)

	for i := 0; i < 100; i++ {
		_, err := s.Insert(i)
		require.NoError(t, err)
	}
	grown := s.Capacity()
	require.Greater(t, grown, 4)

	s.Clear()

	assert.Equal(t, 0, s.Size())
	assert.True(t, s.Empty())
	assert.Equal(t, 4, s.Capacity())

	// Behaves like a fresh store: handles restart at 1.
	h, err := s.Insert(5)
	require.NoError(t, err)
	assert.Equal(t, Handle(1), h)
}

func TestAssign(t *testing.T) {
	s := newStore(t)

	_, err := s.Insert(99)
	require.NoError(t, err)

	handles, err := s.Assign([]int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []Handle{1, 2, 3}, handles)
	assert.Equal(t, 3, s.Size())

	var got []int
	for _, v := range s.All() {
		got = append(got, *v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestReserve(t *testing.T) {
	s := newStore(t, smallBlocks)

	require.NoError(t, s.Reserve(100))
	assert.GreaterOrEqual(t, s.Capacity(), 100)

	// Reserve commits several blocks at once; the free list must still hand
	// out ascending fresh handles, lowest block first.
	for want := 1; want <= 10; want++ {
		h, err := s.Insert(want)
		require.NoError(t, err)
		assert.Equal(t, Handle(want), h)
	}

	// And iteration order therefore matches insertion order.
	assert.Equal(t, []Handle{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, collect(s))

	// Already satisfied reservations are no-ops.
	before := s.Capacity()
	require.NoError(t, s.Reserve(10))
	assert.Equal(t, before, s.Capacity())

	assert.ErrorIs(t, s.Reserve(MaxSlots+1), ErrCapacityLimit)
}

func TestInitialCapacityOption(t *testing.T) {
	s := newStore(t, func(o *Options) {
		o.GrowthPolicy = ConstantGrowth{Block: 8}
		o.InitialCapacity = 50
	})
	assert.GreaterOrEqual(t, s.Capacity(), 50)
	assert.Equal(t, 0, s.Size())
}

func TestMerge(t *testing.T) {
	a := newStore(t, smallBlocks)
	b := newStore(t, smallBlocks)

	ha := make([]Handle, 0, 5)
	for i := 0; i < 5; i++ {
		h, err := a.Insert(i)
		require.NoError(t, err)
		ha = append(ha, h)
	}

	hb := make([]Handle, 0, 6)
	for i := 0; i < 6; i++ {
		h, err := b.Insert(100 + i)
		require.NoError(t, err)
		hb = append(hb, h)
	}
	b.Erase(hb[1])
	b.Erase(hb[4])

	wantSize := a.Size() + b.Size()
	offsetWant := Handle(a.Capacity())

	offset, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, offsetWant, offset)
	assert.Equal(t, wantSize, a.Size())

	// Receiver handles are untouched.
	for i, h := range ha {
		assert.Equal(t, i, *a.At(h))
	}

	// Donor handles map to offset+h.
	for i, h := range hb {
		if i == 1 || i == 4 {
			assert.False(t, a.IsLive(offset+h))
			continue
		}
		assert.Equal(t, 100+i, *a.At(offset+h))
	}

	// The combined free list still satisfies the structural invariants.
	st := a.State()
	require.NoError(t, validateState(st.Tags, st.FreeHead, st.Size))

	// Donor is reset to a fresh store.
	assert.Equal(t, 0, b.Size())
	assert.Equal(t, 4, b.Capacity())
	h, err := b.Insert(1)
	require.NoError(t, err)
	assert.Equal(t, Handle(1), h)
}

func TestMergeFreeSlotsRemainUsable(t *testing.T) {
	a := newStore(t, smallBlocks)
	b := newStore(t, smallBlocks)

	haFree, err := a.Insert(-1)
	require.NoError(t, err)
	_, err = a.Insert(1)
	require.NoError(t, err)
	a.Erase(haFree)

	hbFree, err := b.Insert(-2)
	require.NoError(t, err)
	_, err = b.Insert(2)
	require.NoError(t, err)
	b.Erase(hbFree)

	offset, err := a.Merge(b)
	require.NoError(t, err)

	size := a.Size()
	free := a.Stats().Free
	require.Greater(t, free, 0)

	// Every free slot, from both sides of the merge, must be allocatable
	// before any growth happens.
	capBefore := a.Capacity()
	seen := make(map[Handle]bool)
	for i := 0; i < free; i++ {
		h, err := a.Insert(1000 + i)
		require.NoError(t, err)
		require.False(t, seen[h])
		seen[h] = true
	}
	assert.Equal(t, capBefore, a.Capacity())
	assert.Equal(t, size+free, a.Size())

	// The donor's erased slot resurfaces at its offset position.
	assert.True(t, seen[offset+hbFree])
	assert.True(t, seen[haFree])

	st := a.State()
	require.NoError(t, validateState(st.Tags, st.FreeHead, st.Size))
}

func TestMergeIntoEmptyStore(t *testing.T) {
	a := newStore(t, smallBlocks)
	b := newStore(t, smallBlocks)

	for i := 0; i < 3; i++ {
		_, err := b.Insert(i)
		require.NoError(t, err)
	}

	before := a.Capacity()
	offset, err := a.Merge(b)
	require.NoError(t, err)
	assert.Equal(t, Handle(before), offset)
	assert.Equal(t, 3, a.Size())

	var got []int
	for _, v := range a.All() {
		got = append(got, *v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)

	st := a.State()
	require.NoError(t, validateState(st.Tags, st.FreeHead, st.Size))
}

type fakeGate struct {
	reserved int64
	released int64
	limit    int64
	err      error
}

func (g *fakeGate) Reserve(bytes int64) error {
	if g.err != nil {
		return g.err
	}
	if g.limit > 0 && g.reserved-g.released+bytes > g.limit {
		return errors.New("over budget")
	}
	g.reserved += bytes
	return nil
}

func (g *fakeGate) Release(bytes int64) {
	g.released += bytes
}

func TestMemoryGateVeto(t *testing.T) {
	gate := &fakeGate{}
	s := newStore(t, func(o *Options) {
		o.GrowthPolicy = ConstantGrowth{Block: 4}
		o.Gate = gate
	})

	// Fill the committed block, then make the gate refuse.
	for i := 0; i < s.Capacity()-1; i++ {
		_, err := s.Insert(i)
		require.NoError(t, err)
	}

	gate.err = errors.New("no memory")
	sizeBefore := s.Size()
	capBefore := s.Capacity()

	_, err := s.Insert(99)
	require.ErrorIs(t, err, ErrGrowthDenied)

	// A vetoed growth leaves the store untouched.
	assert.Equal(t, sizeBefore, s.Size())
	assert.Equal(t, capBefore, s.Capacity())

	gate.err = nil
	_, err = s.Insert(99)
	require.NoError(t, err)
}

func TestMemoryGateAccounting(t *testing.T) {
	gate := &fakeGate{}
	s, err := New[int](func(o *Options) {
		o.GrowthPolicy = ConstantGrowth{Block: 4}
		o.Gate = gate
	})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		_, err := s.Insert(i)
		require.NoError(t, err)
	}
	assert.Equal(t, slotBytes[int](s.Capacity()), gate.reserved-gate.released)

	s.Clear()
	assert.Equal(t, slotBytes[int](s.Capacity()), gate.reserved-gate.released)
}

func TestMergeGateAccounting(t *testing.T) {
	gate := &fakeGate{}
	withGate := func(o *Options) {
		o.GrowthPolicy = ConstantGrowth{Block: 4}
		o.Gate = gate
	}

	a, err := New[int](withGate)
	require.NoError(t, err)
	b, err := New[int](withGate)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		_, err := a.Insert(i)
		require.NoError(t, err)
		_, err = b.Insert(i)
		require.NoError(t, err)
	}

	_, err = a.Merge(b)
	require.NoError(t, err)

	// Shared gate balance covers exactly the two remaining buffers.
	want := slotBytes[int](a.Capacity() + b.Capacity())
	assert.Equal(t, want, gate.reserved-gate.released)
}

func TestStats(t *testing.T) {
	s := newStore(t, smallBlocks)

	h, err := s.Insert(1)
	require.NoError(t, err)
	_, err = s.Insert(2)
	require.NoError(t, err)
	s.Erase(h)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
	assert.Equal(t, 2, stats.Free)
	assert.Equal(t, uint64(2), stats.Inserts)
	assert.Equal(t, uint64(1), stats.Erases)
	assert.Equal(t, slotBytes[int](4), stats.BytesReserved)
	assert.NotEmpty(t, fmt.Sprint(s))
}
