package keyed

import (
	"fmt"
	"slices"
	"testing"

	"github.com/hupe1980/slabgo/slab"
)

type doc struct {
	ID   string
	Rank int
}

func TestStore_Basic(t *testing.T) {
	s, err := New[string, doc]()
	if err != nil {
		t.Fatal(err)
	}

	h, err := s.Insert("a", doc{ID: "a", Rank: 1})
	if err != nil {
		t.Fatal(err)
	}
	if h == slab.Nil {
		t.Fatal("expected live handle")
	}

	got, ok := s.Get("a")
	if !ok || got.Rank != 1 {
		t.Fatalf("expected rank 1, got %+v (ok=%v)", got, ok)
	}
	if hh, ok := s.Handle("a"); !ok || hh != h {
		t.Fatalf("expected handle %d, got %d", h, hh)
	}
	if s.At(h).ID != "a" {
		t.Fatal("expected value at handle")
	}

	if !s.Delete("a") {
		t.Fatal("expected delete to hit")
	}
	if s.Delete("a") {
		t.Fatal("expected second delete to miss")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected miss after delete")
	}
	if s.Len() != 0 || !s.Slab().Empty() {
		t.Fatal("expected empty store and slab")
	}
}

func TestStore_ReplaceFreesSlot(t *testing.T) {
	s, err := New[string, doc](func(o *slab.Options) {
		o.GrowthPolicy = slab.ConstantGrowth{Block: 4}
	})
	if err != nil {
		t.Fatal(err)
	}

	h1, err := s.Insert("a", doc{Rank: 1})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.Insert("a", doc{Rank: 2})
	if err != nil {
		t.Fatal(err)
	}

	if h2 == h1 {
		t.Fatal("expected the replacement to land in a fresh slot")
	}
	if s.Slab().IsLive(h1) {
		t.Fatal("expected the old slot to be freed")
	}
	if s.Len() != 1 || s.Slab().Size() != 1 {
		t.Fatalf("expected one live entry, got len %d size %d", s.Len(), s.Slab().Size())
	}
	if got, _ := s.Get("a"); got.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", got.Rank)
	}

	// The freed slot is recycled by the next insert.
	h3, err := s.Insert("b", doc{Rank: 3})
	if err != nil {
		t.Fatal(err)
	}
	if h3 != h1 {
		t.Fatalf("expected slot %d reused, got %d", h1, h3)
	}
}

func TestStore_Wrap(t *testing.T) {
	slots, err := slab.New[doc]()
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []doc{{ID: "c", Rank: 3}, {ID: "a", Rank: 1}, {ID: "b", Rank: 2}} {
		if _, err := slots.Insert(d); err != nil {
			t.Fatal(err)
		}
	}

	s := Wrap(slots, func(d *doc) string { return d.ID })

	if s.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", s.Len())
	}
	if got, ok := s.Get("a"); !ok || got.Rank != 1 {
		t.Fatalf("expected rank 1, got %+v (ok=%v)", got, ok)
	}

	var keys []string
	for k := range s.Ascend() {
		keys = append(keys, k)
	}
	if want := []string{"a", "b", "c"}; !slices.Equal(keys, want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}

func TestStore_WrapDuplicateKeys(t *testing.T) {
	slots, err := slab.New[doc]()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := slots.Insert(doc{ID: "a", Rank: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := slots.Insert(doc{ID: "a", Rank: 2}); err != nil {
		t.Fatal(err)
	}

	s := Wrap(slots, func(d *doc) string { return d.ID })

	// The higher handle wins; the losing slot is erased.
	if s.Len() != 1 || slots.Size() != 1 {
		t.Fatalf("expected one survivor, got len %d size %d", s.Len(), slots.Size())
	}
	if got, _ := s.Get("a"); got.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", got.Rank)
	}
}

func TestStore_MinMax(t *testing.T) {
	s, err := New[int, doc]()
	if err != nil {
		t.Fatal(err)
	}

	if _, _, ok := s.Min(); ok {
		t.Fatal("expected no min on empty store")
	}

	for _, k := range []int{5, 1, 9} {
		if _, err := s.Insert(k, doc{Rank: k}); err != nil {
			t.Fatal(err)
		}
	}

	if k, v, ok := s.Min(); !ok || k != 1 || v.Rank != 1 {
		t.Fatalf("min: got key %d (ok=%v)", k, ok)
	}
	if k, v, ok := s.Max(); !ok || k != 9 || v.Rank != 9 {
		t.Fatalf("max: got key %d (ok=%v)", k, ok)
	}
}

func TestStore_AscendRange(t *testing.T) {
	s, err := New[int, doc]()
	if err != nil {
		t.Fatal(err)
	}
	for k := 1; k <= 9; k += 2 {
		if _, err := s.Insert(k, doc{ID: fmt.Sprintf("d%d", k), Rank: k}); err != nil {
			t.Fatal(err)
		}
	}

	var keys []int
	for k, v := range s.AscendRange(3, 8) {
		if v.Rank != k {
			t.Fatalf("key %d: expected rank %d, got %d", k, k, v.Rank)
		}
		keys = append(keys, k)
	}
	if want := []int{3, 5, 7}; !slices.Equal(keys, want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}

func TestStore_Clear(t *testing.T) {
	s, err := New[string, doc]()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert("a", doc{Rank: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert("b", doc{Rank: 2}); err != nil {
		t.Fatal(err)
	}

	s.Clear()

	if s.Len() != 0 || !s.Slab().Empty() {
		t.Fatal("expected empty store after clear")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected miss after clear")
	}

	h, err := s.Insert("c", doc{Rank: 3})
	if err != nil {
		t.Fatal(err)
	}
	if h != slab.Handle(1) {
		t.Fatalf("expected handle numbering to restart at 1, got %d", h)
	}
}
