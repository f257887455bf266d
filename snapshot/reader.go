package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/slabgo/codec"
	"github.com/hupe1980/slabgo/internal/conv"
	"github.com/hupe1980/slabgo/slab"
)

// ReadOptions contains configuration for reading snapshots.
type ReadOptions struct {
	// Store configures the rebuilt store (growth policy, memory gate).
	Store []func(o *slab.Options)
}

func parseFileHeader(r io.Reader) (fileHeader, error) {
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return fileHeader{}, fmt.Errorf("read header: %w", err)
	}

	if hdr.Magic != MagicNumber {
		return fileHeader{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, hdr.Magic)
	}
	if hdr.Version != Version {
		return fileHeader{}, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, hdr.Version)
	}
	if hdr.SectionCount > maxSections {
		return fileHeader{}, fmt.Errorf("%w: %d sections", ErrMalformed, hdr.SectionCount)
	}

	return hdr, nil
}

// ReadHeader reads just the snapshot header, leaving r positioned at the
// section table.
func ReadHeader(r io.Reader) (Header, error) {
	hdr, err := parseFileHeader(r)
	if err != nil {
		return Header{}, err
	}
	return hdr.public(), nil
}

// ReadLiveSet reads just the live-handle bitmap from snapshot bytes,
// skipping over the tag and record sections. Useful for answering "which
// handles exist" without paying for record decoding.
func ReadLiveSet(r io.Reader) (*roaring.Bitmap, error) {
	hdr, err := parseFileHeader(r)
	if err != nil {
		return nil, err
	}

	table := make([]sectionEntry, hdr.SectionCount)
	for i := range table {
		if err := binary.Read(r, binary.LittleEndian, &table[i]); err != nil {
			return nil, fmt.Errorf("read section table: %w", err)
		}
	}

	for _, entry := range table {
		length, err := conv.Uint64ToInt(entry.Length)
		if err != nil {
			return nil, fmt.Errorf("%w: section %d length: %v", ErrMalformed, entry.ID, err)
		}

		if entry.ID != sectionLive {
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return nil, fmt.Errorf("skip section %d: %w", entry.ID, err)
			}
			continue
		}

		cr := NewChecksumReader(r)
		data := make([]byte, length)
		if _, err := io.ReadFull(cr, data); err != nil {
			return nil, fmt.Errorf("read live set section: %w", err)
		}

		if err := cr.Verify(entry.Checksum); err != nil {
			return nil, fmt.Errorf("live set section: %w", err)
		}

		rb := roaring.New()
		if _, err := rb.ReadFrom(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("live set section: %w", err)
		}
		return rb, nil
	}

	return nil, fmt.Errorf("%w: missing live set section", ErrMalformed)
}

// Read rebuilds a store from snapshot bytes.
//
// Every section checksum is verified and the rebuilt free-list structure is
// validated before any value is placed, so a damaged snapshot fails loudly
// instead of producing a store with silently wrong allocation behavior.
func Read[T any](r io.Reader, optFns ...func(o *ReadOptions)) (*slab.Store[T], Header, error) {
	var opts ReadOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	hdr, err := parseFileHeader(r)
	if err != nil {
		return nil, Header{}, err
	}

	pub := hdr.public()

	cdc, ok := codec.ByName(pub.Codec)
	if !ok {
		return nil, Header{}, fmt.Errorf("%w: %q", ErrUnknownCodec, pub.Codec)
	}

	table := make([]sectionEntry, hdr.SectionCount)
	for i := range table {
		if err := binary.Read(r, binary.LittleEndian, &table[i]); err != nil {
			return nil, Header{}, fmt.Errorf("read section table: %w", err)
		}
	}

	// Sections follow the table back to back, in table order.
	sections := make(map[uint32][]byte, len(table))
	expected := uint64(fileHeaderSize) + uint64(len(table))*sectionEntrySize

	for _, entry := range table {
		if entry.Offset != expected {
			return nil, Header{}, fmt.Errorf("%w: section %d at offset %d, expected %d", ErrMalformed, entry.ID, entry.Offset, expected)
		}

		length, err := conv.Uint64ToInt(entry.Length)
		if err != nil {
			return nil, Header{}, fmt.Errorf("%w: section %d length: %v", ErrMalformed, entry.ID, err)
		}

		cr := NewChecksumReader(r)
		data := make([]byte, length)
		if _, err := io.ReadFull(cr, data); err != nil {
			return nil, Header{}, fmt.Errorf("read section %d: %w", entry.ID, err)
		}

		if err := cr.Verify(entry.Checksum); err != nil {
			return nil, Header{}, fmt.Errorf("section %d: %w", entry.ID, err)
		}

		sections[entry.ID] = data
		expected += entry.Length
	}

	store, err := rebuild[T](pub, sections, cdc, opts)
	if err != nil {
		return nil, Header{}, err
	}

	return store, pub, nil
}

func rebuild[T any](pub Header, sections map[uint32][]byte, cdc codec.Codec, opts ReadOptions) (*slab.Store[T], error) {
	tagsSec, ok := sections[sectionTags]
	if !ok {
		return nil, fmt.Errorf("%w: missing tags section", ErrMalformed)
	}

	raw, err := decompressAll(tagsSec, pub.Compression)
	if err != nil {
		return nil, fmt.Errorf("tags section: %w", err)
	}

	tags, err := tagsFromBytes(raw)
	if err != nil {
		return nil, err
	}

	if len(tags) != pub.Capacity {
		return nil, fmt.Errorf("%w: %d tags for capacity %d", ErrMalformed, len(tags), pub.Capacity)
	}

	liveSec, ok := sections[sectionLive]
	if !ok {
		return nil, fmt.Errorf("%w: missing live set section", ErrMalformed)
	}

	rb := roaring.New()
	if _, err := rb.ReadFrom(bytes.NewReader(liveSec)); err != nil {
		return nil, fmt.Errorf("live set section: %w", err)
	}

	if rb.GetCardinality() != uint64(pub.Size) { //nolint:gosec
		return nil, fmt.Errorf("%w: live set has %d handles, header says %d", ErrMalformed, rb.GetCardinality(), pub.Size)
	}

	recordsSec, ok := sections[sectionRecords]
	if !ok {
		return nil, fmt.Errorf("%w: missing records section", ErrMalformed)
	}

	records, err := decompressAll(recordsSec, pub.Compression)
	if err != nil {
		return nil, fmt.Errorf("records section: %w", err)
	}

	st := slab.State{
		Tags:     tags,
		FreeHead: pub.FreeHead,
		Size:     pub.Size,
	}

	// iter.Seq2 cannot surface errors, so record decoding failures land in
	// decodeErr and take precedence over the placement error FromState
	// reports for the resulting short sequence.
	var decodeErr error

	values := func(yield func(slab.Handle, T) bool) {
		off := 0
		for off+recordHeaderSize <= len(records) {
			h := slab.Handle(binary.LittleEndian.Uint32(records[off:]))
			n := int(binary.LittleEndian.Uint32(records[off+4:]))
			off += recordHeaderSize

			if off+n > len(records) {
				decodeErr = fmt.Errorf("%w: record %d extends beyond section", ErrMalformed, h)
				return
			}

			var v T
			if err := cdc.Unmarshal(records[off:off+n], &v); err != nil {
				decodeErr = fmt.Errorf("decode record %d: %w", h, err)
				return
			}
			off += n

			if !yield(h, v) {
				return
			}
		}

		if off != len(records) {
			decodeErr = fmt.Errorf("%w: %d trailing bytes in records section", ErrMalformed, len(records)-off)
		}
	}

	store, err := slab.FromState[T](st, values, opts.Store...)
	if decodeErr != nil {
		return nil, decodeErr
	}
	if err != nil {
		return nil, fmt.Errorf("rebuild store: %w", err)
	}

	return store, nil
}
