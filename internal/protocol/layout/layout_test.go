package layout

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/danmuck/keywire/internal/bytebuf"
	"github.com/stretchr/testify/require"
)

var (
	testKeyLayout = MustNew("test.key", 8, FieldSpec{Name: "key", Offset: 0, Width: 8})
	testKeyField  = testKeyLayout.MustField("key")
)

func TestNewRejectsBadDescriptors(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		specs   []FieldSpec
		wantErr error
	}{
		{name: "", size: 8, wantErr: ErrEmptyName},
		{name: "t", size: 0, wantErr: ErrInvalidSize},
		{name: "t", size: -4, wantErr: ErrInvalidSize},
		{
			name:    "t",
			size:    8,
			specs:   []FieldSpec{{Name: "", Offset: 0, Width: 4}},
			wantErr: ErrInvalidField,
		},
		{
			name:    "t",
			size:    8,
			specs:   []FieldSpec{{Name: "a", Offset: 0, Width: 3}},
			wantErr: ErrInvalidField,
		},
		{
			name:    "t",
			size:    8,
			specs:   []FieldSpec{{Name: "a", Offset: 6, Width: 4}},
			wantErr: ErrInvalidField,
		},
		{
			name: "t",
			size: 8,
			specs: []FieldSpec{
				{Name: "a", Offset: 0, Width: 4},
				{Name: "a", Offset: 4, Width: 4},
			},
			wantErr: ErrInvalidField,
		},
		{
			name: "t",
			size: 8,
			specs: []FieldSpec{
				{Name: "a", Offset: 0, Width: 8},
				{Name: "b", Offset: 4, Width: 4},
			},
			wantErr: ErrFieldOverlap,
		},
	}

	for _, tc := range cases {
		_, err := New(tc.name, tc.size, tc.specs...)
		require.ErrorIs(t, err, tc.wantErr)
	}
}

func TestViewDecodesBigEndianKey(t *testing.T) {
	raw := []byte{0, 0, 0, 0, 0, 0, 0, 1}

	v, err := testKeyLayout.View(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v.Uint64(testKeyField))
}

func TestViewRejectsShortInput(t *testing.T) {
	_, err := testKeyLayout.View([]byte{0, 0, 0, 1})
	require.Error(t, err)

	var lerr *LayoutError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindSizeMismatch, lerr.Kind)
	require.Equal(t, "test.key", lerr.Layout)
	require.Equal(t, 8, lerr.Want)
	require.Equal(t, 4, lerr.Got)
}

func TestViewRejectsLongInput(t *testing.T) {
	_, err := testKeyLayout.View(make([]byte, 9))

	var lerr *LayoutError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, 9, lerr.Got)
}

func TestOwnedAndBorrowingAgree(t *testing.T) {
	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}

	borrowed, err := testKeyLayout.View(raw)
	require.NoError(t, err)

	owned, err := testKeyLayout.ViewBuffer(bytebuf.From(raw))
	require.NoError(t, err)

	require.Equal(t, borrowed.Uint64(testKeyField), owned.Uint64(testKeyField))
	require.Equal(t, borrowed.Uint64(testKeyField), owned.Borrow().Uint64(testKeyField))
}

func TestViewBufferRejectsSizeMismatch(t *testing.T) {
	_, err := testKeyLayout.ViewBuffer(bytebuf.From([]byte{1, 2, 3, 4}))

	var lerr *LayoutError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, KindSizeMismatch, lerr.Kind)
}

func TestClonedBuffersDecodeIndependently(t *testing.T) {
	buf := bytebuf.From([]byte{0, 0, 0, 0, 0, 0, 0, 42})
	dup := buf.Clone()

	a, err := testKeyLayout.ViewBuffer(buf)
	require.NoError(t, err)
	b, err := testKeyLayout.ViewBuffer(dup)
	require.NoError(t, err)

	require.Equal(t, uint64(42), a.Uint64(testKeyField))
	require.Equal(t, a.Uint64(testKeyField), b.Uint64(testKeyField))
}

func TestUnalignedOffsetsAndMixedWidths(t *testing.T) {
	l := MustNew("test.mixed", 12,
		FieldSpec{Name: "tag", Offset: 0, Width: 1},
		FieldSpec{Name: "seq", Offset: 1, Width: 4},
		FieldSpec{Name: "flag", Offset: 5, Width: 2},
		FieldSpec{Name: "epoch", Offset: 7, Width: 4, Order: binary.LittleEndian},
	)

	raw := []byte{
		0x7F,
		0x00, 0x00, 0x01, 0x00, // seq = 256, deliberately not 4-byte aligned
		0xAB, 0xCD,
		0x01, 0x00, 0x00, 0x00, // epoch = 1 little-endian
		0xEE,
	}
	v, err := l.View(raw)
	require.NoError(t, err)

	require.Equal(t, uint8(0x7F), v.Uint8(l.MustField("tag")))
	require.Equal(t, uint32(256), v.Uint32(l.MustField("seq")))
	require.Equal(t, uint16(0xABCD), v.Uint16(l.MustField("flag")))
	require.Equal(t, uint32(1), v.Uint32(l.MustField("epoch")))
}

func TestWindowAliasesRecordBytes(t *testing.T) {
	raw := []byte{0, 0, 0, 0, 0, 0, 0, 9}
	v, err := testKeyLayout.View(raw)
	require.NoError(t, err)

	win := v.Window(testKeyField)
	require.Len(t, win, 8)
	require.Equal(t, byte(9), win[7])
}

func TestMustFieldPanicsOnUnknownName(t *testing.T) {
	require.Panics(t, func() { testKeyLayout.MustField("nope") })
}

func TestFieldsReturnsDeclarationOrder(t *testing.T) {
	l := MustNew("test.pair", 6,
		FieldSpec{Name: "b", Offset: 4, Width: 2},
		FieldSpec{Name: "a", Offset: 0, Width: 4},
	)
	fields := l.Fields()
	require.Len(t, fields, 2)
	require.Equal(t, "b", fields[0].Name())
	require.Equal(t, "a", fields[1].Name())
	require.Equal(t, 4, fields[1].Width())
}

func TestLayoutErrorIsNotRecoverable(t *testing.T) {
	_, err := testKeyLayout.View(nil)
	require.Error(t, err)
	// the error carries no sentinel other than its type
	require.False(t, errors.Is(err, ErrInvalidField))
}
