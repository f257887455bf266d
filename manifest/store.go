package manifest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/hupe1980/slabgo/blobstore"
	"golang.org/x/sync/errgroup"
)

// pruneConcurrency bounds parallel deletes so object-store rate limits
// are not tripped.
const pruneConcurrency = 8

// Store manages manifest blobs and the CURRENT pointer on top of a
// blobstore.BlobStore. Safe for concurrent use by one process; cross-
// process coordination needs a store with atomic CURRENT updates, such
// as s3.DDBCommitStore.
type Store struct {
	blobs blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a manifest store.
func NewStore(blobs blobstore.BlobStore) *Store {
	return &Store{blobs: blobs}
}

func manifestName(id uint64) string {
	return fmt.Sprintf("%s-%06d.json", ManifestPrefix, id)
}

// parseManifestID extracts the version ID from a manifest blob name,
// returning false for names that are not versioned manifests.
func parseManifestID(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, ManifestPrefix+"-")
	if !ok {
		return 0, false
	}

	rest, ok = strings.CutSuffix(rest, ".json")
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// Load loads the manifest CURRENT points at.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadCurrentLocked(ctx)
}

func (s *Store) loadCurrentLocked(ctx context.Context) (*Manifest, error) {
	content, err := blobstore.ReadAll(ctx, s.blobs, CurrentFileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.readManifestLocked(ctx, strings.TrimSpace(string(content)))
}

// LoadVersion loads a specific manifest version. 0 means the current one.
func (s *Store) LoadVersion(ctx context.Context, id uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 {
		return s.loadCurrentLocked(ctx)
	}

	return s.readManifestLocked(ctx, manifestName(id))
}

func (s *Store) readManifestLocked(ctx context.Context, name string) (*Manifest, error) {
	content, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("manifest %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}

	m := &Manifest{}
	if err := gojson.Unmarshal(content, m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", name, err)
	}

	if m.Version != CurrentVersion {
		return nil, fmt.Errorf("manifest %s has version %d: %w", name, m.Version, ErrIncompatibleVersion)
	}

	return m, nil
}

// ListVersions returns all readable manifests, newest first. Corrupt or
// unreadable manifest blobs are skipped, so the listing is best effort.
func (s *Store) ListVersions(ctx context.Context) ([]*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.blobs.List(ctx, ManifestPrefix)
	if err != nil {
		return nil, err
	}

	var manifests []*Manifest

	for _, name := range names {
		if _, ok := parseManifestID(name); !ok {
			continue
		}

		m, err := s.readManifestLocked(ctx, name)
		if err != nil {
			continue
		}

		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].ID > manifests[j].ID
	})

	return manifests, nil
}

// Save commits m as the next version: it bumps the ID, writes the
// versioned manifest blob, then repoints CURRENT. A crash between the two
// writes leaves CURRENT on the previous, fully valid version.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = CurrentVersion
	m.ID++
	m.CreatedAt = time.Now().UTC()

	name := manifestName(m.ID)

	content, err := gojson.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := s.blobs.Put(ctx, name, content); err != nil {
		return fmt.Errorf("write manifest %s: %w", name, err)
	}

	if err := s.blobs.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		return fmt.Errorf("update %s: %w", CurrentFileName, err)
	}

	return nil
}

// DeleteVersion removes one manifest blob. The snapshot it references is
// left alone; use Prune to reclaim unreferenced snapshots.
func (s *Store) DeleteVersion(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.blobs.Delete(ctx, manifestName(id))
}

// Prune deletes all but the newest keep manifests, along with any
// snapshot blobs only the deleted manifests reference. Deletes run in
// parallel.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.blobs.List(ctx, ManifestPrefix)
	if err != nil {
		return err
	}

	type version struct {
		id   uint64
		name string
	}

	var versions []version
	for _, name := range names {
		if id, ok := parseManifestID(name); ok {
			versions = append(versions, version{id: id, name: name})
		}
	}

	if len(versions) <= keep {
		return nil
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].id > versions[j].id })

	// Snapshots referenced by surviving manifests must stay, whichever
	// manifest they came in with.
	kept := make(map[string]struct{})
	for _, v := range versions[:keep] {
		m, err := s.readManifestLocked(ctx, v.name)
		if err != nil {
			continue
		}
		if m.Snapshot.Name != "" {
			kept[m.Snapshot.Name] = struct{}{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pruneConcurrency)

	for _, v := range versions[keep:] {
		g.Go(func() error {
			m, err := s.readManifestLocked(gctx, v.name)
			if err == nil && m.Snapshot.Name != "" {
				if _, ok := kept[m.Snapshot.Name]; !ok {
					if err := s.blobs.Delete(gctx, m.Snapshot.Name); err != nil {
						return fmt.Errorf("delete snapshot %s: %w", m.Snapshot.Name, err)
					}
				}
			}

			if err := s.blobs.Delete(gctx, v.name); err != nil {
				return fmt.Errorf("delete manifest %s: %w", v.name, err)
			}

			return nil
		})
	}

	return g.Wait()
}
