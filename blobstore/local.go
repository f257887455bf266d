package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/slabgo/internal/mmap"
)

const localTempPattern = ".tmp-"

// LocalStore implements BlobStore on a local directory. Reads are served
// through memory mappings, so repeated range reads of a large snapshot
// cost no buffer copies. Writes land in a temp file and are renamed into
// place on Close, making every blob either absent or complete.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory. The
// directory is created on the first write.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}

	return &localBlob{m: m}, nil
}

// Create starts a streaming write. The temp file lives next to the target
// so the final rename stays on one filesystem.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	target := s.path(name)

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+localTempPattern+"*")
	if err != nil {
		return nil, err
	}

	return &localWritableBlob{f: f, target: target}, nil
}

// Put writes a complete blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// Delete removes a blob. Missing blobs are ignored.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

// List returns all blob names with the given prefix, sorted. In-flight
// temp files are skipped.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipAll
			}
			return err
		}

		if d.IsDir() || strings.Contains(d.Name(), localTempPattern) {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}

		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return b.m.ReadAt(p, off)
}

// ReadRange returns a reader over the mapped bytes. The reader is valid
// until the blob is closed.
func (b *localBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := b.m.Bytes()
	if off >= int64(len(data)) {
		return nil, io.EOF
	}

	end := off + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}

	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(len(b.m.Bytes()))
}

func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}

type localWritableBlob struct {
	f      *os.File
	target string
	closed bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}

// Close syncs the temp file and renames it over the target. On any
// failure the temp file is removed and the target is left untouched.
func (w *localWritableBlob) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true

	tmpName := w.f.Name()

	cleanup := func(err error) error {
		_ = w.f.Close()
		_ = os.Remove(tmpName)
		return err
	}

	// CreateTemp uses 0600; blobs are plain data files.
	if err := w.f.Chmod(0o644); err != nil {
		return cleanup(err)
	}

	if err := w.f.Sync(); err != nil {
		return cleanup(err)
	}

	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, w.target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// Make the rename durable. Failure here does not lose data on a clean
	// shutdown, so it is not fatal.
	if dir, err := os.Open(filepath.Dir(w.target)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}

	return nil
}

// Abort removes the temp file without touching the target.
func (w *localWritableBlob) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_ = w.f.Close()

	return os.Remove(w.f.Name())
}
