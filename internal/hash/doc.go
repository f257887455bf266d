// Package hash provides hardware-accelerated hashing for data integrity.
//
// All checksums use CRC32-Castagnoli (CRC32C): it is hardware-accelerated
// on x86 (SSE4.2) and ARM (CRC extension), and it is the polynomial object
// stores and storage engines standardize on.
//
// One-shot:
//
//	checksum := hash.CRC32C(data)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
