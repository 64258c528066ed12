package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/keywire/internal/bytebuf"
	"github.com/danmuck/keywire/internal/protocol"
	"github.com/danmuck/keywire/internal/protocol/layout"
)

var (
	ErrNilHandler    = errors.New("dispatch: handler is nil")
	ErrNilLayout     = errors.New("dispatch: layout is nil")
	ErrNilDecoder    = errors.New("dispatch: decoder is nil")
	ErrInvalidKind   = errors.New("dispatch: invalid record kind")
	ErrBindingExists = errors.New("dispatch: binding already exists")
	ErrUnknownKind   = errors.New("dispatch: unknown record kind")
)

// Binding ties a record kind to its layout and a serve path that decodes an
// owning buffer and runs it through the bound handler. Construct bindings
// with Bind; the zero value is unusable.
type Binding struct {
	kind   string
	layout *layout.Layout
	serve  func(ctx context.Context, buf bytebuf.Buffer) (protocol.Response, error)
}

func (b *Binding) Kind() string           { return b.kind }
func (b *Binding) Layout() *layout.Layout { return b.layout }

// Serve decodes buf and dispatches it. Decoding happens before the handler's
// readiness is consulted so malformed records never consume handler capacity.
func (b *Binding) Serve(ctx context.Context, buf bytebuf.Buffer) (protocol.Response, error) {
	return b.serve(ctx, buf)
}

// Bind builds a Binding for one record kind. The decode function converts a
// validated owning buffer into the handler's request payload; Serve runs
// decode, then Ready, then Call, in that order.
func Bind[P any](
	kind string,
	l *layout.Layout,
	decode func(bytebuf.Buffer) (protocol.Request[P], error),
	h Handler[protocol.Request[P], protocol.Response],
) (*Binding, error) {
	if !isValidKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if l == nil {
		return nil, ErrNilLayout
	}
	if decode == nil {
		return nil, ErrNilDecoder
	}
	if h == nil {
		return nil, ErrNilHandler
	}
	return &Binding{
		kind:   kind,
		layout: l,
		serve: func(ctx context.Context, buf bytebuf.Buffer) (protocol.Response, error) {
			req, err := decode(buf)
			if err != nil {
				return protocol.Response{}, err
			}
			if err := h.Ready(ctx); err != nil {
				return protocol.Response{}, err
			}
			return h.Call(ctx, req)
		},
	}, nil
}

// Registry stores bindings by record kind.
type Registry struct {
	items map[string]*Binding
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Binding)}
}

func (r *Registry) Register(b *Binding) error {
	if b == nil || b.serve == nil {
		return ErrNilHandler
	}
	if _, ok := r.items[b.kind]; ok {
		return fmt.Errorf("%w: %q", ErrBindingExists, b.kind)
	}
	r.items[b.kind] = b
	return nil
}

func (r *Registry) Resolve(kind string) (*Binding, bool) {
	b, ok := r.items[kind]
	return b, ok
}

// Kinds returns registered record kinds in deterministic order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.items))
	for kind := range r.items {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func isValidKind(kind string) bool {
	if kind == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(kind); i++ {
		c := kind[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(kind)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
