package slab

import (
	"testing"
)

func BenchmarkInsert(b *testing.B) {
	b.ReportAllocs()

	s, err := New[uint64]()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		if _, err := s.Insert(42); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInsertErase(b *testing.B) {
	b.ReportAllocs()

	s, err := New[uint64]()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		h, err := s.Insert(42)
		if err != nil {
			b.Fatal(err)
		}
		s.Erase(h)
	}
}

func BenchmarkAt(b *testing.B) {
	s, err := New[uint64]()
	if err != nil {
		b.Fatal(err)
	}
	handles := make([]Handle, 1024)
	for i := range handles {
		h, err := s.Insert(uint64(i))
		if err != nil {
			b.Fatal(err)
		}
		handles[i] = h
	}

	b.ReportAllocs()
	b.ResetTimer()

	var sink uint64
	i := 0
	for b.Loop() {
		sink += *s.At(handles[i&1023])
		i++
	}
	_ = sink
}

func BenchmarkIterate(b *testing.B) {
	s, err := New[uint64]()
	if err != nil {
		b.Fatal(err)
	}
	handles := make([]Handle, 4096)
	for i := range handles {
		h, err := s.Insert(uint64(i))
		if err != nil {
			b.Fatal(err)
		}
		handles[i] = h
	}
	// Half-empty store: the iterator earns its keep skipping holes.
	for i := 0; i < len(handles); i += 2 {
		s.Erase(handles[i])
	}

	b.ReportAllocs()
	b.ResetTimer()

	var sink uint64
	for b.Loop() {
		for _, v := range s.All() {
			sink += *v
		}
	}
	_ = sink
}
