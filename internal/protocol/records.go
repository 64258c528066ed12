package protocol

import (
	"encoding/binary"

	"github.com/danmuck/keywire/internal/bytebuf"
	"github.com/danmuck/keywire/internal/protocol/layout"
)

// KeyLookupKind is the record kind clients declare during the handshake to
// stream key lookup records.
const KeyLookupKind = "key.lookup"

// KeyLookupLayout describes one lookup record: a single big-endian uint64
// key, 8 bytes, no padding.
var KeyLookupLayout = layout.MustNew(KeyLookupKind, 8,
	layout.FieldSpec{Name: "key", Offset: 0, Width: 8},
)

var keyField = KeyLookupLayout.MustField("key")

// Request is a transparent carrier for one decoded record payload. The
// service dispatch layer moves Requests around without inspecting them.
type Request[P any] struct {
	Payload P
}

// KeyView is a borrowing overlay of one lookup record. It aliases the bytes
// it was decoded from and must not outlive them; it never crosses the
// dispatch boundary.
type KeyView struct {
	v layout.View
}

// Key returns the record's big-endian key.
func (k KeyView) Key() uint64 {
	return k.v.Uint64(keyField)
}

// OwnedKey is an owning overlay of one lookup record: it retains the
// immutable buffer carrying the record, so it is safe to store and to hand
// across goroutines. Only this flavor crosses the dispatch boundary.
type OwnedKey struct {
	v layout.Owned
}

// Key returns the record's big-endian key.
func (k OwnedKey) Key() uint64 {
	return k.v.Uint64(keyField)
}

// Buffer returns the retained record bytes.
func (k OwnedKey) Buffer() bytebuf.Buffer {
	return k.v.Buffer()
}

// Borrow returns the equivalent borrowing overlay.
func (k OwnedKey) Borrow() KeyView {
	return KeyView{v: k.v.Borrow()}
}

// DecodeKeyRequest validates buf as one lookup record and returns an owning
// request. The only failure is a layout.LayoutError size mismatch; cost is
// one length comparison, no byte is read until an accessor call.
func DecodeKeyRequest(buf bytebuf.Buffer) (Request[OwnedKey], error) {
	v, err := KeyLookupLayout.ViewBuffer(buf)
	if err != nil {
		return Request[OwnedKey]{}, err
	}
	return Request[OwnedKey]{Payload: OwnedKey{v: v}}, nil
}

// DecodeKeyRequestBytes validates b as one lookup record and returns a
// borrowing request over it. The request is valid only while b stays alive
// and unmodified; use DecodeKeyRequest for anything that leaves the frame.
func DecodeKeyRequestBytes(b []byte) (Request[KeyView], error) {
	v, err := KeyLookupLayout.View(b)
	if err != nil {
		return Request[KeyView]{}, err
	}
	return Request[KeyView]{Payload: KeyView{v: v}}, nil
}

// AppendKey appends the wire form of one lookup record to dst.
func AppendKey(dst []byte, key uint64) []byte {
	var rec [8]byte
	binary.BigEndian.PutUint64(rec[:], key)
	return append(dst, rec[:]...)
}

// EncodeKey returns one lookup record as an immutable buffer.
func EncodeKey(key uint64) bytebuf.Buffer {
	return bytebuf.Take(AppendKey(nil, key))
}
