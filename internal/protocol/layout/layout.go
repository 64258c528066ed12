// Package layout describes fixed-width binary record layouts and provides
// validated, zero-copy views over byte slices carrying them.
//
// A Layout is a compile-once descriptor: total record width plus a set of
// named fields at fixed offsets. Views are constructed only through the
// validating conversions View and ViewBuffer, which perform a single length
// comparison; field accessors then read at fixed offsets with an explicit
// byte order and no further validation. Records are never reinterpreted
// through native-alignment tricks, so any starting alignment is fine.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyName    = errors.New("layout: empty layout name")
	ErrInvalidSize  = errors.New("layout: invalid layout size")
	ErrInvalidField = errors.New("layout: invalid field")
	ErrFieldOverlap = errors.New("layout: field overlap")
	ErrUnknownField = errors.New("layout: unknown field")
)

// FieldSpec declares one fixed-offset field of a layout.
// A nil Order means big-endian.
type FieldSpec struct {
	Name   string
	Offset int
	Width  int
	Order  binary.ByteOrder
}

// Field is a resolved field handle. Obtain one from Layout.Field or
// Layout.MustField and reuse it; accessing through a handle costs one
// explicit-endian read with no map lookups.
type Field struct {
	name   string
	offset int
	width  int
	order  binary.ByteOrder
}

// Name returns the field name the handle was resolved from.
func (f Field) Name() string { return f.name }

// Offset returns the field's byte offset within the record.
func (f Field) Offset() int { return f.offset }

// Width returns the field's byte width.
func (f Field) Width() int { return f.width }

// Layout is an immutable fixed-width record descriptor.
type Layout struct {
	name   string
	size   int
	fields []Field
	index  map[string]int
}

// New validates the descriptor and returns a Layout. Field widths must be
// 1, 2, 4, or 8 bytes, fields must sit inside the record, names must be
// unique, and no two fields may overlap.
func New(name string, size int, specs ...FieldSpec) (*Layout, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	l := &Layout{
		name:   name,
		size:   size,
		fields: make([]Field, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
	}
	for i, spec := range specs {
		fieldName := strings.TrimSpace(spec.Name)
		if fieldName == "" {
			return nil, fmt.Errorf("%w: specs[%d] missing name", ErrInvalidField, i)
		}
		if _, ok := l.index[fieldName]; ok {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidField, fieldName)
		}
		switch spec.Width {
		case 1, 2, 4, 8:
		default:
			return nil, fmt.Errorf("%w: %q width %d", ErrInvalidField, fieldName, spec.Width)
		}
		if spec.Offset < 0 || spec.Offset+spec.Width > size {
			return nil, fmt.Errorf(
				"%w: %q offset %d width %d outside record of %d bytes",
				ErrInvalidField, fieldName, spec.Offset, spec.Width, size,
			)
		}
		order := spec.Order
		if order == nil {
			order = binary.BigEndian
		}
		l.index[fieldName] = len(l.fields)
		l.fields = append(l.fields, Field{
			name:   fieldName,
			offset: spec.Offset,
			width:  spec.Width,
			order:  order,
		})
	}

	if err := checkOverlap(l.fields); err != nil {
		return nil, err
	}
	return l, nil
}

// MustNew is New for package-level descriptors; it panics on a bad spec.
func MustNew(name string, size int, specs ...FieldSpec) *Layout {
	l, err := New(name, size, specs...)
	if err != nil {
		panic(err)
	}
	return l
}

func checkOverlap(fields []Field) error {
	if len(fields) < 2 {
		return nil
	}
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offset < sorted[j].offset })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.offset+prev.width > cur.offset {
			return fmt.Errorf("%w: %q and %q", ErrFieldOverlap, prev.name, cur.name)
		}
	}
	return nil
}

// Name returns the layout name used in error reporting.
func (l *Layout) Name() string { return l.name }

// Size returns the exact record width in bytes.
func (l *Layout) Size() int { return l.size }

// Field resolves a field handle by name.
func (l *Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	return l.fields[i], true
}

// MustField resolves a field handle by name and panics if the layout does
// not declare it. Intended for package-level handles next to MustNew.
func (l *Layout) MustField(name string) Field {
	f, ok := l.Field(name)
	if !ok {
		panic(fmt.Errorf("%w: %s.%s", ErrUnknownField, l.name, name))
	}
	return f
}

// Fields returns the declared field handles in declaration order.
func (l *Layout) Fields() []Field {
	out := make([]Field, len(l.fields))
	copy(out, l.fields)
	return out
}
