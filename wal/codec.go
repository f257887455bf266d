package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/slabgo/internal/conv"
	"github.com/hupe1980/slabgo/slab"
)

const (
	// entryHeaderSize is the fixed per-entry header:
	// [Type:1][Seq:8][Handle:4][PayloadLen:4]
	entryHeaderSize = 17

	// maxPayloadLen bounds a single entry payload. Anything larger in a
	// length field means the file is damaged, not that a 4GB value was
	// logged.
	maxPayloadLen = 64 << 20
)

// castagnoli is the CRC32-C polynomial table. CRC32-C has hardware support
// on amd64 and arm64.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// encodeEntry writes an entry in binary format.
// Format: [Type:1][Seq:8][Handle:4][PayloadLen:4][Payload:N][CRC32C:4]
// The checksum covers header and payload.
func (w *WAL) encodeEntry(entry *Entry) error {
	payloadLen, err := conv.IntToUint32(len(entry.Payload))
	if err != nil || payloadLen > maxPayloadLen {
		return fmt.Errorf("payload too large: %d bytes", len(entry.Payload))
	}

	var hdr [entryHeaderSize]byte

	hdr[0] = byte(entry.Type)
	binary.LittleEndian.PutUint64(hdr[1:9], entry.Seq)
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(entry.Handle))
	binary.LittleEndian.PutUint32(hdr[13:17], payloadLen)

	crc := crc32.Checksum(hdr[:], castagnoli)
	crc = crc32.Update(crc, castagnoli, entry.Payload)

	if _, err := w.writer.Write(hdr[:]); err != nil {
		return err
	}

	if len(entry.Payload) > 0 {
		if _, err := w.writer.Write(entry.Payload); err != nil {
			return err
		}
	}

	var trailer [4]byte

	binary.LittleEndian.PutUint32(trailer[:], crc)

	if _, err := w.writer.Write(trailer[:]); err != nil {
		return err
	}

	return nil
}

// decodeEntry reads one entry from r.
//
// io.EOF means a clean end of the stream. io.ErrUnexpectedEOF means the
// entry was torn mid-write; replay treats it like a clean end because a torn
// tail is exactly what a crash during append leaves behind. ErrCorrupt means
// the bytes are there but wrong.
func decodeEntry(r io.Reader, entry *Entry) error {
	var hdr [entryHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}

	typ := EntryType(hdr[0])
	if typ < EntryInsert || typ > EntryCheckpoint {
		return fmt.Errorf("%w: unknown entry type %d", ErrCorrupt, hdr[0])
	}

	payloadLen := binary.LittleEndian.Uint32(hdr[13:17])
	if payloadLen > maxPayloadLen {
		return fmt.Errorf("%w: payload length %d exceeds limit", ErrCorrupt, payloadLen)
	}

	entry.Type = typ
	entry.Seq = binary.LittleEndian.Uint64(hdr[1:9])
	entry.Handle = slab.Handle(binary.LittleEndian.Uint32(hdr[9:13]))
	entry.Payload = nil

	crc := crc32.Checksum(hdr[:], castagnoli)

	if payloadLen > 0 {
		entry.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, entry.Payload); err != nil {
			return err
		}

		crc = crc32.Update(crc, castagnoli, entry.Payload)
	}

	var trailer [4]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return err
	}

	if got := binary.LittleEndian.Uint32(trailer[:]); got != crc {
		return fmt.Errorf("%w: entry %d checksum mismatch", ErrCorrupt, entry.Seq)
	}

	return nil
}

func (w *WAL) flushLocked() error {
	if err := w.bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if w.compressed {
		if err := w.compressor.Flush(); err != nil {
			return fmt.Errorf("failed to flush compressor: %w", err)
		}
	}
	return nil
}

func (w *WAL) syncCommitLocked() error {
	return w.syncIfNeeded()
}
