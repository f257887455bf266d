package wal

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/slabgo/internal/conv"
)

const (
	// walMagic identifies a slab WAL file.
	walMagic = "SLW0"

	// walVersion is the current file format version.
	walVersion = 1

	// headerSize is the fixed size of the file header in bytes.
	headerSize = 24

	// flagCompressed marks the entry stream as zstd-compressed.
	flagCompressed uint16 = 1 << 0
)

// fileHeader is the fixed-size header at the start of every WAL file.
//
// Layout (little-endian):
//
//	[0:4]   magic "SLW0"
//	[4:6]   version
//	[6:8]   flags
//	[8]     compression level
//	[9:12]  reserved
//	[12:20] base sequence number
//	[20:24] reserved
//
// baseSeq is the sequence number the log was truncated at. Sequence numbers
// stay monotonic across checkpoint truncations, so replay can align entries
// with the snapshot that covers them by comparing sequence numbers alone.
type fileHeader struct {
	version uint16
	flags   uint16
	level   uint8
	baseSeq uint64
}

func (h fileHeader) compressed() bool {
	return h.flags&flagCompressed != 0
}

func writeFileHeader(w io.Writer, compress bool, level int, baseSeq uint64) error {
	var buf [headerSize]byte

	copy(buf[0:4], walMagic)
	binary.LittleEndian.PutUint16(buf[4:6], walVersion)

	var flags uint16
	if compress {
		flags |= flagCompressed
	}

	binary.LittleEndian.PutUint16(buf[6:8], flags)

	lvl, err := conv.IntToUint8(level)
	if err != nil {
		return fmt.Errorf("invalid compression level: %w", err)
	}

	buf[8] = lvl

	binary.LittleEndian.PutUint64(buf[12:20], baseSeq)

	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	return nil
}

func readFileHeader(r io.Reader) (fileHeader, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fileHeader{}, fmt.Errorf("read header: %w", err)
	}

	if string(buf[0:4]) != walMagic {
		return fileHeader{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, buf[0:4])
	}

	h := fileHeader{
		version: binary.LittleEndian.Uint16(buf[4:6]),
		flags:   binary.LittleEndian.Uint16(buf[6:8]),
		level:   buf[8],
		baseSeq: binary.LittleEndian.Uint64(buf[12:20]),
	}

	if h.version != walVersion {
		return fileHeader{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.version)
	}

	return h, nil
}
