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

// recordHeaderSize frames one record: [Handle:4][Len:4].
const recordHeaderSize = 8

// maxSections bounds the section table when reading untrusted files.
const maxSections = 16

// Options contains configuration for writing snapshots.
type Options struct {
	// Compression selects the block compression for the tag and record
	// sections. The live set is a roaring bitmap and is stored as is.
	Compression CompressionType

	// Codec encodes values into the records section. The codec name is
	// recorded in the header so readers decode with the same one.
	Codec codec.Codec

	// WALSeq is the WAL sequence number this snapshot covers. Recovery
	// replays only log entries beyond it.
	WALSeq uint64
}

// DefaultOptions returns default snapshot options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionLZ4,
		Codec:       codec.Default,
	}
}

// Write serializes the store to w.
//
// The layout is a 64-byte header, a section table, then the sections back to
// back: slot tags, the live-handle bitmap, and the codec-encoded records in
// handle order. Each section carries its own CRC32 in the table.
func Write[T any](w io.Writer, s *slab.Store[T], optFns ...func(o *Options)) error {
	opts := DefaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	var codecName [12]byte
	if len(opts.Codec.Name()) > len(codecName) {
		return fmt.Errorf("codec name %q too long", opts.Codec.Name())
	}
	copy(codecName[:], opts.Codec.Name())

	st := s.State()

	// Slot tags
	var tagsBuf bytes.Buffer
	tagsCW := NewChecksumWriter(&tagsBuf)
	tw := newBlockWriter(tagsCW, opts.Compression, 0)
	if _, err := tw.Write(tagsToBytes(st.Tags)); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}

	// Live handles
	rb := roaring.New()
	for h := range s.Handles() {
		rb.Add(uint32(h))
	}
	rb.RunOptimize()

	var liveBuf bytes.Buffer
	liveCW := NewChecksumWriter(&liveBuf)
	if _, err := rb.WriteTo(liveCW); err != nil {
		return fmt.Errorf("write live set: %w", err)
	}

	// Records, in handle order
	var recordsBuf bytes.Buffer
	recordsCW := NewChecksumWriter(&recordsBuf)
	rw := newBlockWriter(recordsCW, opts.Compression, 0)

	for h, v := range s.All() {
		data, err := opts.Codec.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", h, err)
		}

		recLen, err := conv.IntToUint32(len(data))
		if err != nil {
			return fmt.Errorf("record %d: %w", h, err)
		}

		var hdr [recordHeaderSize]byte
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(h))
		binary.LittleEndian.PutUint32(hdr[4:8], recLen)

		if _, err := rw.Write(hdr[:]); err != nil {
			return fmt.Errorf("write record %d: %w", h, err)
		}
		if _, err := rw.Write(data); err != nil {
			return fmt.Errorf("write record %d: %w", h, err)
		}
	}

	if err := rw.Flush(); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	sections := []struct {
		id   uint32
		data []byte
		sum  uint32
	}{
		{sectionTags, tagsBuf.Bytes(), tagsCW.Sum()},
		{sectionLive, liveBuf.Bytes(), liveCW.Sum()},
		{sectionRecords, recordsBuf.Bytes(), recordsCW.Sum()},
	}

	capacity, err := conv.IntToUint64(len(st.Tags))
	if err != nil {
		return err
	}

	size, err := conv.IntToUint64(st.Size)
	if err != nil {
		return err
	}

	hdr := fileHeader{
		Magic:        MagicNumber,
		Version:      Version,
		Compression:  uint8(opts.Compression),
		Capacity:     capacity,
		Size:         size,
		FreeHead:     uint32(st.FreeHead),
		SectionCount: uint32(len(sections)), //nolint:gosec
		WALSeq:       opts.WALSeq,
		CodecName:    codecName,
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	offset := uint64(fileHeaderSize + len(sections)*sectionEntrySize) //nolint:gosec
	for _, sec := range sections {
		length, err := conv.IntToUint64(len(sec.data))
		if err != nil {
			return err
		}

		entry := sectionEntry{
			ID:       sec.id,
			Checksum: sec.sum,
			Offset:   offset,
			Length:   length,
		}
		if err := binary.Write(w, binary.LittleEndian, &entry); err != nil {
			return fmt.Errorf("write section table: %w", err)
		}

		offset += length
	}

	for _, sec := range sections {
		if _, err := w.Write(sec.data); err != nil {
			return fmt.Errorf("write section %d: %w", sec.id, err)
		}
	}

	return nil
}

// tagsToBytes encodes the tag words as little-endian section bytes, matching
// the rest of the on-disk format regardless of the host's byte order.
func tagsToBytes(tags []uint32) []byte {
	buf := make([]byte, len(tags)*4)
	for i, tag := range tags {
		binary.LittleEndian.PutUint32(buf[i*4:], tag)
	}
	return buf
}

// tagsFromBytes decodes little-endian section bytes into a fresh tag slice.
func tagsFromBytes(raw []byte) ([]uint32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%w: tag section length %d not a multiple of 4", ErrMalformed, len(raw))
	}

	tags := make([]uint32, len(raw)/4)
	for i := range tags {
		tags[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}

	return tags, nil
}
