// Package bytebuf provides an immutable view over shared byte storage.
//
// A Buffer is written once at construction and never modified afterward,
// so any number of Buffers may alias the same backing array and be read
// concurrently without locking. Storage is reclaimed by the garbage
// collector when the last view referencing it drops.
package bytebuf

import "bytes"

// Buffer is an immutable view over a shared backing array.
//
// The zero value is an empty, valid Buffer.
type Buffer struct {
	b []byte
}

// From copies p into freshly owned storage. Use From at ingest boundaries
// where the caller keeps writing to p after the call.
func From(p []byte) Buffer {
	if len(p) == 0 {
		return Buffer{}
	}
	b := make([]byte, len(p))
	copy(b, p)
	return Buffer{b: b}
}

// Take adopts p without copying. The caller must not read or write p after
// the call; the Buffer becomes the sole owner of the storage.
func Take(p []byte) Buffer {
	return Buffer{b: p}
}

// FromString copies s into a Buffer.
func FromString(s string) Buffer {
	return From([]byte(s))
}

// Clone returns a view sharing this Buffer's storage. O(1), no allocation.
func (b Buffer) Clone() Buffer {
	return b
}

// Len returns the number of bytes in the view.
func (b Buffer) Len() int {
	return len(b.b)
}

// At returns the byte at index i. It panics if i is out of range, matching
// slice indexing semantics.
func (b Buffer) At(i int) byte {
	return b.b[i]
}

// Slice returns a sub-view of the bytes in [from, to), sharing storage with
// the parent. It panics if the bounds are invalid, matching slice semantics.
func (b Buffer) Slice(from, to int) Buffer {
	return Buffer{b: b.b[from:to:to]}
}

// Copy returns a freshly allocated copy of the viewed bytes. Mutating the
// result never affects the Buffer.
func (b Buffer) Copy() []byte {
	if len(b.b) == 0 {
		return nil
	}
	out := make([]byte, len(b.b))
	copy(out, b.b)
	return out
}

// Bytes returns the viewed bytes without copying. The returned slice aliases
// shared storage: callers must treat it as read-only. Prefer Copy unless the
// call site is on a hot path and provably does not write.
func (b Buffer) Bytes() []byte {
	return b.b
}

// String returns the viewed bytes as a string. The string is a copy.
func (b Buffer) String() string {
	return string(b.b)
}

// Equal reports whether two Buffers view equal bytes.
func (b Buffer) Equal(other Buffer) bool {
	return bytes.Equal(b.b, other.b)
}

// EqualBytes reports whether the Buffer views bytes equal to p.
func (b Buffer) EqualBytes(p []byte) bool {
	return bytes.Equal(b.b, p)
}
