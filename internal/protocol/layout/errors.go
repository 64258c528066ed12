package layout

import "fmt"

// ErrorKind classifies a failed validating conversion.
type ErrorKind uint8

const (
	// KindSizeMismatch means the input length did not equal the layout's
	// record width. Retrying the same bytes can never succeed.
	KindSizeMismatch ErrorKind = iota + 1
)

func (k ErrorKind) String() string {
	switch k {
	case KindSizeMismatch:
		return "size_mismatch"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// LayoutError reports why a byte slice could not be viewed through a layout.
// Match with errors.As.
type LayoutError struct {
	Kind   ErrorKind
	Layout string
	Want   int
	Got    int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout: %s %s: want %d bytes, got %d", e.Layout, e.Kind, e.Want, e.Got)
}

func sizeMismatch(l *Layout, got int) *LayoutError {
	return &LayoutError{
		Kind:   KindSizeMismatch,
		Layout: l.name,
		Want:   l.size,
		Got:    got,
	}
}
