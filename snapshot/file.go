package snapshot

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/slabgo/slab"
)

// SaveToFile writes a snapshot of the store to path atomically: the bytes go
// to a temp file in the same directory, are fsynced, then renamed over the
// target. A crash mid-save leaves the previous snapshot intact.
func SaveToFile[T any](path string, s *slab.Store[T], optFns ...func(o *Options)) error {
	return saveAtomic(path, func(w io.Writer) error {
		return Write(w, s, optFns...)
	})
}

// LoadFromFile rebuilds a store from the snapshot at path.
func LoadFromFile[T any](path string, optFns ...func(o *ReadOptions)) (*slab.Store[T], Header, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Path is configurable
	if err != nil {
		return nil, Header{}, err
	}
	defer f.Close()

	return Read[T](bufio.NewReaderSize(f, 256*1024), optFns...)
}

func saveAtomic(path string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0644)

	// Use buffered writer to batch writes (critical for performance)
	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Atomically replace target.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}
