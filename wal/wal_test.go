package wal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/slabgo/slab"
)

func TestWAL(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer wal.Close()

	if got, want := wal.FilePath(), filepath.Join(dir, FileName); got != want {
		t.Errorf("FilePath: got %s, want %s", got, want)
	}

	if err := wal.LogInsert(1, []byte("alpha")); err != nil {
		t.Fatalf("LogInsert failed: %v", err)
	}

	if err := wal.LogUpdate(1, []byte("beta")); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}

	if err := wal.LogErase(1); err != nil {
		t.Fatalf("LogErase failed: %v", err)
	}

	if err := wal.LogClear(); err != nil {
		t.Fatalf("LogClear failed: %v", err)
	}

	count, err := wal.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 entries, got %d", count)
	}

	if got := wal.Seq(); got != 4 {
		t.Errorf("Expected seq 4, got %d", got)
	}
}

func TestWALReplay(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	operations := []struct {
		handle  slab.Handle
		payload string
	}{
		{1, "data1"},
		{2, "data2"},
		{3, "data3"},
	}

	for _, op := range operations {
		if err := wal.LogInsert(op.handle, []byte(op.payload)); err != nil {
			t.Fatalf("LogInsert failed: %v", err)
		}
	}
	if err := wal.LogErase(2); err != nil {
		t.Fatalf("LogErase failed: %v", err)
	}

	wal.Close()

	// Reopen and replay
	wal, err = New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer wal.Close()

	replayed := []Entry{}
	err = wal.Replay(0, func(entry Entry) error {
		replayed = append(replayed, entry)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(replayed) != 4 {
		t.Fatalf("Expected 4 replayed entries, got %d", len(replayed))
	}

	for i, op := range operations {
		if replayed[i].Type != EntryInsert {
			t.Errorf("Entry %d: expected EntryInsert, got %v", i, replayed[i].Type)
		}
		if replayed[i].Handle != op.handle {
			t.Errorf("Entry %d: expected handle %d, got %d", i, op.handle, replayed[i].Handle)
		}
		if !bytes.Equal(replayed[i].Payload, []byte(op.payload)) {
			t.Errorf("Entry %d: payload mismatch: got %q", i, replayed[i].Payload)
		}
	}

	last := replayed[3]
	if last.Type != EntryErase || last.Handle != 2 {
		t.Errorf("Expected erase of handle 2, got %v handle %d", last.Type, last.Handle)
	}
	if last.Payload != nil {
		t.Errorf("Erase entry should carry no payload, got %d bytes", len(last.Payload))
	}
}

func TestWALReplaySkipsCoveredEntries(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer wal.Close()

	for i := 1; i <= 3; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	// A snapshot taken at seq 2 covers the first two entries.
	var seqs []uint64
	err = wal.Replay(2, func(entry Entry) error {
		seqs = append(seqs, entry.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(seqs) != 1 || seqs[0] != 3 {
		t.Errorf("Expected only seq 3 replayed, got %v", seqs)
	}
}

func TestWALCheckpoint(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer wal.Close()

	for i := 1; i <= 5; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	count, _ := wal.Len()
	if count != 5 {
		t.Errorf("Expected 5 entries before checkpoint, got %d", count)
	}

	if err := wal.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	// Verify WAL is empty after checkpoint
	count, _ = wal.Len()
	if count != 0 {
		t.Errorf("Expected 0 entries after checkpoint, got %d", count)
	}

	// Sequence numbers keep counting past the checkpoint marker.
	if err := wal.LogInsert(6, []byte("data")); err != nil {
		t.Fatalf("LogInsert after checkpoint failed: %v", err)
	}

	if got := wal.Seq(); got != 7 {
		t.Errorf("Expected seq 7 after checkpoint marker, got %d", got)
	}

	count, _ = wal.Len()
	if count != 1 {
		t.Errorf("Expected 1 entry after checkpoint, got %d", count)
	}
}

func TestWALSequenceNumbersAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	wal.Close()

	wal, err = New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer wal.Close()

	for i := 4; i <= 5; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	var seqs []uint64
	err = wal.Replay(0, func(entry Entry) error {
		seqs = append(seqs, entry.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	want := []uint64{1, 2, 3, 4, 5}
	if len(seqs) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(seqs))
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Errorf("Entry %d: expected seq %d, got %d", i, want[i], seqs[i])
		}
	}
}

func TestWALSequenceSurvivesCheckpointAndReopen(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	// Marker takes seq 4 and becomes the base of the truncated file.
	if err := wal.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	wal.Close()

	wal, err = New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer wal.Close()

	if err := wal.LogInsert(4, []byte("data")); err != nil {
		t.Fatalf("LogInsert failed: %v", err)
	}

	if got := wal.Seq(); got != 5 {
		t.Errorf("Expected seq 5 after reopen of truncated log, got %d", got)
	}
}

func TestWALTornTail(t *testing.T) {
	dir := t.TempDir()
	walPath := filepath.Join(dir, FileName)

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	if err := wal.LogInsert(1, []byte("payload-1")); err != nil {
		t.Fatalf("LogInsert failed: %v", err)
	}
	if err := wal.LogInsert(2, []byte("payload-2")); err != nil {
		t.Fatalf("LogInsert failed: %v", err)
	}
	wal.Close()

	// Tear the second entry, as a crash mid-append would.
	f, err := os.OpenFile(walPath, os.O_RDWR, 0600)
	if err != nil {
		t.Fatalf("Failed to open WAL file: %v", err)
	}
	stat, _ := f.Stat()
	if err := f.Truncate(stat.Size() - 5); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	f.Close()

	wal, err = New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer wal.Close()

	var handles []slab.Handle
	err = wal.Replay(0, func(entry Entry) error {
		handles = append(handles, entry.Handle)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay over torn tail failed: %v", err)
	}

	if len(handles) != 1 || handles[0] != 1 {
		t.Errorf("Expected only the intact entry, got %v", handles)
	}

	// Recovery checkpoints after replay, discarding the torn bytes before
	// anything new is appended.
	if err := wal.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	if err := wal.LogInsert(3, []byte("payload-3")); err != nil {
		t.Fatalf("LogInsert failed: %v", err)
	}

	handles = nil
	err = wal.Replay(0, func(entry Entry) error {
		handles = append(handles, entry.Handle)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay after checkpoint failed: %v", err)
	}

	if len(handles) != 1 || handles[0] != 3 {
		t.Errorf("Expected only the post-checkpoint entry, got %v", handles)
	}
}

func TestWALCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	walPath := filepath.Join(dir, FileName)

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	if err := wal.LogInsert(1, []byte("payload-1")); err != nil {
		t.Fatalf("LogInsert failed: %v", err)
	}
	wal.Close()

	// Flip a byte inside the first entry's payload.
	raw, err := os.ReadFile(walPath)
	if err != nil {
		t.Fatalf("Failed to read WAL file: %v", err)
	}
	raw[headerSize+entryHeaderSize+2] ^= 0xff
	if err := os.WriteFile(walPath, raw, 0600); err != nil {
		t.Fatalf("Failed to write WAL file: %v", err)
	}

	wal, err = New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer wal.Close()

	err = wal.Replay(0, func(entry Entry) error {
		return nil
	})
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}

func TestWALLogBatchInsert(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer wal.Close()

	handles := []slab.Handle{1, 2, 3}
	payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	if err := wal.LogBatchInsert(handles, payloads); err != nil {
		t.Fatalf("LogBatchInsert failed: %v", err)
	}

	count, _ := wal.Len()
	if count != 3 {
		t.Errorf("Expected 3 entries, got %d", count)
	}

	if err := wal.LogBatchInsert(handles, payloads[:2]); err == nil {
		t.Error("Expected error on handle/payload count mismatch")
	}
}

func TestWALAutoCheckpoint(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
		o.AutoCheckpointOps = 3
		o.DurabilityMode = DurabilityAsync
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer wal.Close()

	fires := 0
	wal.SetCheckpointCallback(func() error {
		fires++
		return wal.Checkpoint()
	})

	for i := 1; i <= 3; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	if fires != 1 {
		t.Fatalf("Expected 1 auto-checkpoint after 3 ops, got %d", fires)
	}

	count, _ := wal.Len()
	if count != 0 {
		t.Errorf("Expected empty WAL after auto-checkpoint, got %d entries", count)
	}

	// Counter was reset; the next trigger needs three more ops.
	for i := 4; i <= 6; i++ {
		if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
			t.Fatalf("LogInsert failed: %v", err)
		}
	}

	if fires != 2 {
		t.Errorf("Expected 2 auto-checkpoints after 6 ops, got %d", fires)
	}
}

func TestWALDurabilityModes(t *testing.T) {
	modes := []struct {
		name string
		mode DurabilityMode
	}{
		{"async", DurabilityAsync},
		{"group_commit", DurabilityGroupCommit},
		{"sync", DurabilitySync},
	}

	for _, tc := range modes {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()

			wal, err := New(func(o *Options) {
				o.Path = dir
				o.DurabilityMode = tc.mode
				o.GroupCommitInterval = time.Millisecond
			})
			if err != nil {
				t.Fatalf("Failed to create WAL: %v", err)
			}

			for i := 1; i <= 10; i++ {
				if err := wal.LogInsert(slab.Handle(i), []byte("data")); err != nil { //nolint:gosec
					t.Fatalf("LogInsert failed: %v", err)
				}
			}

			wal.Close()

			wal, err = New(func(o *Options) {
				o.Path = dir
			})
			if err != nil {
				t.Fatalf("Failed to reopen WAL: %v", err)
			}
			defer wal.Close()

			count := 0
			err = wal.Replay(0, func(entry Entry) error {
				count++
				return nil
			})
			if err != nil {
				t.Fatalf("Replay failed: %v", err)
			}
			if count != 10 {
				t.Errorf("Expected 10 entries, got %d", count)
			}
		})
	}
}

func TestWALGroupCommitMaxOps(t *testing.T) {
	dir := t.TempDir()

	// With the threshold at 1, every op takes the immediate-sync path
	// instead of waiting for the ticker.
	wal, err := New(func(o *Options) {
		o.Path = dir
		o.DurabilityMode = DurabilityGroupCommit
		o.GroupCommitInterval = time.Hour
		o.GroupCommitMaxOps = 1
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}
	defer wal.Close()

	done := make(chan error, 1)
	go func() {
		done <- wal.LogInsert(1, []byte("data"))
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("LogInsert failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("LogInsert blocked despite batch threshold")
	}
}

func TestWALClosed(t *testing.T) {
	dir := t.TempDir()

	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to create WAL: %v", err)
	}

	if err := wal.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Idempotent
	if err := wal.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}

	if err := wal.LogInsert(1, []byte("data")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from LogInsert, got %v", err)
	}
	if _, err := wal.Len(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Len, got %v", err)
	}
	if err := wal.Replay(0, func(Entry) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Replay, got %v", err)
	}
}

func TestWALCompression(t *testing.T) {
	dir := t.TempDir()

	walCompressed, err := New(func(o *Options) {
		o.Path = filepath.Join(dir, "compressed")
		o.Compress = true
		o.CompressionLevel = 3
		o.DurabilityMode = DurabilityAsync
	})
	if err != nil {
		t.Fatalf("Failed to create compressed WAL: %v", err)
	}
	defer walCompressed.Close()

	walUncompressed, err := New(func(o *Options) {
		o.Path = filepath.Join(dir, "uncompressed")
		o.Compress = false
		o.DurabilityMode = DurabilityAsync
	})
	if err != nil {
		t.Fatalf("Failed to create uncompressed WAL: %v", err)
	}
	defer walUncompressed.Close()

	payload := append(bytes.Repeat([]byte("slab"), 64), []byte("tail")...)

	const numEntries = 100
	for i := 1; i <= numEntries; i++ {
		if err := walCompressed.LogInsert(slab.Handle(i), payload); err != nil { //nolint:gosec
			t.Fatalf("Compressed LogInsert failed: %v", err)
		}
		if err := walUncompressed.LogInsert(slab.Handle(i), payload); err != nil { //nolint:gosec
			t.Fatalf("Uncompressed LogInsert failed: %v", err)
		}
	}

	// Close to flush
	walCompressed.Close()
	walUncompressed.Close()

	compressedInfo, err := os.Stat(filepath.Join(dir, "compressed", FileName))
	if err != nil {
		t.Fatalf("Failed to stat compressed WAL: %v", err)
	}

	uncompressedInfo, err := os.Stat(filepath.Join(dir, "uncompressed", FileName))
	if err != nil {
		t.Fatalf("Failed to stat uncompressed WAL: %v", err)
	}

	compressionRatio := float64(uncompressedInfo.Size()) / float64(compressedInfo.Size())

	t.Logf("Compressed size:   %d bytes", compressedInfo.Size())
	t.Logf("Uncompressed size: %d bytes", uncompressedInfo.Size())
	t.Logf("Compression ratio: %.2fx", compressionRatio)

	if compressionRatio < 1.5 {
		t.Errorf("Compression ratio too low: %.2fx (expected >= 1.5x)", compressionRatio)
	}

	// Reopen the compressed log and verify every entry survived.
	walRead, err := New(func(o *Options) {
		o.Path = filepath.Join(dir, "compressed")
	})
	if err != nil {
		t.Fatalf("Failed to reopen compressed WAL: %v", err)
	}
	defer walRead.Close()

	count := 0
	err = walRead.Replay(0, func(entry Entry) error {
		if !bytes.Equal(entry.Payload, payload) {
			t.Errorf("Entry %d: payload mismatch", entry.Seq)
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if count != numEntries {
		t.Errorf("Expected %d entries, got %d", numEntries, count)
	}
}

func TestWALCompressedAppendAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	for round := 0; round < 2; round++ {
		wal, err := New(func(o *Options) {
			o.Path = dir
			o.Compress = true
			o.DurabilityMode = DurabilityAsync
		})
		if err != nil {
			t.Fatalf("Round %d: failed to open WAL: %v", round, err)
		}

		for i := 1; i <= 50; i++ {
			h := slab.Handle(round*50 + i) //nolint:gosec
			if err := wal.LogInsert(h, []byte("data")); err != nil {
				t.Fatalf("Round %d: LogInsert failed: %v", round, err)
			}
		}

		wal.Close()
	}

	// Each open appends a fresh zstd frame; the decoder reads them back to
	// back as one stream.
	wal, err := New(func(o *Options) {
		o.Path = dir
	})
	if err != nil {
		t.Fatalf("Failed to reopen WAL: %v", err)
	}
	defer wal.Close()

	count := 0
	err = wal.Replay(0, func(entry Entry) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if count != 100 {
		t.Errorf("Expected 100 entries across reopens, got %d", count)
	}

	if got := wal.Seq(); got != 100 {
		t.Errorf("Expected seq 100, got %d", got)
	}
}
