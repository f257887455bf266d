// Package conv provides checked integer conversions.
//
// The functions here guard the boundaries where sizes and offsets cross
// between Go's platform-dependent int and the fixed-width integers used in
// file formats: snapshot headers, WAL framing, and blob lengths read from
// untrusted bytes. Conversions that are provably in range (loop indices,
// bounded counters) should use plain casts instead.
package conv
