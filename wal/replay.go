package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Replay invokes callback for every entry with a sequence number greater
// than fromSeq, in log order.
//
// fromSeq is the WAL sequence recorded in the snapshot being recovered onto;
// pass 0 to replay everything. Checkpoint markers are skipped: the snapshot
// taken at a marker already covers the entries before it, and the sequence
// filter excludes those entries anyway.
//
// A torn tail (crash during append) ends replay cleanly. A checksum or
// structural failure earlier in the stream returns an error wrapping
// ErrCorrupt.
func (w *WAL) Replay(fromSeq uint64, callback func(entry Entry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return ErrClosed
	}

	// Seek to the start of the entry stream
	if _, err := w.file.Seek(w.dataOffset, io.SeekStart); err != nil {
		return err
	}

	var reader io.Reader
	if w.compressed {
		if err := w.decompressor.Reset(w.file); err != nil {
			return fmt.Errorf("failed to reset decompressor: %w", err)
		}
		reader = w.decompressor
	} else {
		reader = bufio.NewReader(w.file)
	}

	for {
		var entry Entry

		err := decodeEntry(reader, &entry)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Clean end, or an append that crashed mid-write.
				break
			}
			return fmt.Errorf("WAL replay failed at entry: %w", err)
		}

		if entry.Type == EntryCheckpoint || entry.Seq <= fromSeq {
			continue
		}

		if err := callback(entry); err != nil {
			return fmt.Errorf("failed to replay entry %d: %w", entry.Seq, err)
		}
	}

	// Seek back to end for appending
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	return nil
}
