package layout

import "github.com/danmuck/keywire/internal/bytebuf"

// View is a borrowing validated view: it aliases the caller's bytes and is
// valid only while the caller keeps them alive and unmodified, for example
// inside one iteration of a read loop over a reused scratch buffer. A View
// must not be stored or handed across a dispatch boundary; convert to an
// Owned view for that.
type View struct {
	layout *Layout
	b      []byte
}

// Owned is an owning validated view: it retains an immutable Buffer and is
// self-sufficient, safe to store and to pass between goroutines.
type Owned struct {
	layout *Layout
	buf    bytebuf.Buffer
}

// View validates len(b) against the record width and returns a borrowing
// view. The only failure is a size mismatch; no byte is inspected.
func (l *Layout) View(b []byte) (View, error) {
	if len(b) != l.size {
		return View{}, sizeMismatch(l, len(b))
	}
	return View{layout: l, b: b}, nil
}

// ViewBuffer validates buf's length against the record width and returns an
// owning view over it.
func (l *Layout) ViewBuffer(buf bytebuf.Buffer) (Owned, error) {
	if buf.Len() != l.size {
		return Owned{}, sizeMismatch(l, buf.Len())
	}
	return Owned{layout: l, buf: buf}, nil
}

// Layout returns the descriptor the view was validated against.
func (v View) Layout() *Layout { return v.layout }

// Uint8 reads the field as a uint8. The handle must belong to this view's
// layout; accessors perform no validation beyond the construction check.
func (v View) Uint8(f Field) uint8 {
	return v.b[f.offset]
}

// Uint16 reads the field with its declared byte order.
func (v View) Uint16(f Field) uint16 {
	return f.order.Uint16(v.b[f.offset : f.offset+2])
}

// Uint32 reads the field with its declared byte order.
func (v View) Uint32(f Field) uint32 {
	return f.order.Uint32(v.b[f.offset : f.offset+4])
}

// Uint64 reads the field with its declared byte order.
func (v View) Uint64(f Field) uint64 {
	return f.order.Uint64(v.b[f.offset : f.offset+8])
}

// Window returns the field's raw bytes. The slice aliases the viewed
// storage; callers must not modify it.
func (v View) Window(f Field) []byte {
	return v.b[f.offset : f.offset+f.width]
}

// Layout returns the descriptor the view was validated against.
func (o Owned) Layout() *Layout { return o.layout }

// Buffer returns the retained immutable buffer.
func (o Owned) Buffer() bytebuf.Buffer { return o.buf }

// Borrow returns the equivalent borrowing view over the retained buffer.
// Both flavors read identical values for identical bytes.
func (o Owned) Borrow() View {
	return View{layout: o.layout, b: o.buf.Bytes()}
}

// Uint8 reads the field as a uint8.
func (o Owned) Uint8(f Field) uint8 { return o.Borrow().Uint8(f) }

// Uint16 reads the field with its declared byte order.
func (o Owned) Uint16(f Field) uint16 { return o.Borrow().Uint16(f) }

// Uint32 reads the field with its declared byte order.
func (o Owned) Uint32(f Field) uint32 { return o.Borrow().Uint32(f) }

// Uint64 reads the field with its declared byte order.
func (o Owned) Uint64(f Field) uint64 { return o.Borrow().Uint64(f) }
