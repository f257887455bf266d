package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/slabgo/internal/conv"
	"github.com/hupe1980/slabgo/internal/mmap"
)

// Mapped is a snapshot opened through a read-only memory mapping.
//
// It serves header and section reads without loading the file into the heap,
// which makes it cheap to inspect large snapshots (live count, tag layout,
// WAL coverage) or to pick one of several before a full Read. Close unmaps;
// data returned by the accessors is copied and stays valid afterwards.
type Mapped struct {
	m      *mmap.Mapping
	header Header
	table  []sectionEntry
}

// OpenMapped maps the snapshot file at path.
func OpenMapped(path string) (*Mapped, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	data := m.Bytes()
	if len(data) < fileHeaderSize {
		_ = m.Close()
		return nil, fmt.Errorf("%w: file too small for header", ErrMalformed)
	}

	hdr, err := parseFileHeader(bytes.NewReader(data))
	if err != nil {
		_ = m.Close()
		return nil, err
	}

	tableEnd := fileHeaderSize + int(hdr.SectionCount)*sectionEntrySize
	if len(data) < tableEnd {
		_ = m.Close()
		return nil, fmt.Errorf("%w: file too small for section table", ErrMalformed)
	}

	table := make([]sectionEntry, hdr.SectionCount)
	rd := bytes.NewReader(data[fileHeaderSize:tableEnd])
	for i := range table {
		if err := binary.Read(rd, binary.LittleEndian, &table[i]); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("read section table: %w", err)
		}
	}

	// Section reads jump around the file.
	_ = m.Advise(mmap.AccessRandom)

	return &Mapped{
		m:      m,
		header: hdr.public(),
		table:  table,
	}, nil
}

// Header returns the snapshot header.
func (mp *Mapped) Header() Header {
	return mp.header
}

// LiveSet returns the set of live handles recorded in the snapshot.
func (mp *Mapped) LiveSet() (*roaring.Bitmap, error) {
	sec, err := mp.section(sectionLive)
	if err != nil {
		return nil, err
	}

	// ReadFrom copies, so the bitmap survives Close.
	rb := roaring.New()
	if _, err := rb.ReadFrom(bytes.NewReader(sec)); err != nil {
		return nil, fmt.Errorf("live set section: %w", err)
	}

	return rb, nil
}

// Tags returns a copy of the slot tag words.
func (mp *Mapped) Tags() ([]uint32, error) {
	sec, err := mp.section(sectionTags)
	if err != nil {
		return nil, err
	}

	raw, err := decompressAll(sec, mp.header.Compression)
	if err != nil {
		return nil, fmt.Errorf("tags section: %w", err)
	}

	return tagsFromBytes(raw)
}

// section returns the verified bytes of one section, viewed from the mapping.
func (mp *Mapped) section(id uint32) ([]byte, error) {
	for _, entry := range mp.table {
		if entry.ID != id {
			continue
		}

		offset, err := conv.Uint64ToInt(entry.Offset)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d offset: %v", ErrMalformed, id, err)
		}

		length, err := conv.Uint64ToInt(entry.Length)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d length: %v", ErrMalformed, id, err)
		}

		data, err := mp.m.Region(offset, length)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}

		if got := CalculateChecksum(data); got != entry.Checksum {
			return nil, fmt.Errorf("section %d: %w", id, &ChecksumMismatchError{Expected: entry.Checksum, Actual: got})
		}

		return data, nil
	}

	return nil, fmt.Errorf("%w: missing section %d", ErrMalformed, id)
}

// Close unmaps the snapshot.
func (mp *Mapped) Close() error {
	return mp.m.Close()
}
