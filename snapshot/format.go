package snapshot

import (
	"errors"

	"github.com/hupe1980/slabgo/slab"
)

const (
	// MagicNumber identifies slab snapshot files (ASCII: "SLB0").
	MagicNumber = 0x534c4230
	// Version is the current file format version.
	Version = 0x00010000
)

var (
	ErrInvalidMagic   = errors.New("snapshot: invalid magic number")
	ErrInvalidVersion = errors.New("snapshot: unsupported version")
	ErrMalformed      = errors.New("snapshot: malformed file")
	ErrUnknownCodec   = errors.New("snapshot: unknown codec")
)

// Section identifiers. Sections are self-contained byte ranges addressed by
// the table that follows the file header.
const (
	sectionTags    uint32 = 1 // slot tag words, block-compressed
	sectionLive    uint32 = 2 // roaring bitmap of live handles
	sectionRecords uint32 = 3 // codec-encoded values keyed by handle
)

// fileHeader is the 64-byte header at the start of every snapshot file.
// Layout mirrors the in-memory struct byte for byte (little-endian).
type fileHeader struct {
	Magic        uint32
	Version      uint32
	Compression  uint8
	Padding1     [3]byte
	Capacity     uint64 // slot count including the reserved slot 0
	Size         uint64 // live value count
	FreeHead     uint32 // head of the free list
	SectionCount uint32
	WALSeq       uint64 // WAL sequence this snapshot covers
	CodecName    [12]byte
	Reserved     [8]byte
}

const fileHeaderSize = 64

// sectionEntry is one 24-byte row of the section table.
type sectionEntry struct {
	ID       uint32
	Checksum uint32 // CRC32 of the section bytes as stored
	Offset   uint64 // absolute file offset
	Length   uint64
}

const sectionEntrySize = 24

// Header describes a snapshot without its payload.
type Header struct {
	Version     uint32
	Compression CompressionType
	Capacity    int
	Size        int
	FreeHead    slab.Handle
	WALSeq      uint64
	Codec       string
}

func (h fileHeader) public() Header {
	name := h.CodecName[:]
	for i, b := range name {
		if b == 0 {
			name = name[:i]
			break
		}
	}

	return Header{
		Version:     h.Version,
		Compression: CompressionType(h.Compression),
		Capacity:    int(h.Capacity),    //nolint:gosec
		Size:        int(h.Size),        //nolint:gosec
		FreeHead:    slab.Handle(h.FreeHead),
		WALSeq:      h.WALSeq,
		Codec:       string(name),
	}
}
