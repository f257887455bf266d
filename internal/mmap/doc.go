// Package mmap provides read-only memory-mapped file access.
//
// Snapshot files are opened through this package so headers and section
// tables can be inspected without reading the whole file, and section
// payloads can be handed to the decoder as zero-copy views.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Windows: CreateFileMapping/MapViewOfFile (Advise is a no-op)
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers
// must ensure no goroutine touches Bytes or Region views after Close
// returns.
package mmap
