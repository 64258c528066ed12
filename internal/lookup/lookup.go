// Package lookup implements the key.lookup record handler.
package lookup

import (
	"context"

	"github.com/danmuck/keywire/internal/protocol"
	"github.com/danmuck/keywire/internal/store"
)

// Handler resolves decoded key records against the store. A missing key is a
// normal StatusNotFound response, not a handler error; errors are reserved
// for infrastructure failures.
type Handler struct {
	store *store.Store
}

func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

func (h *Handler) Ready(ctx context.Context) error {
	return ctx.Err()
}

func (h *Handler) Call(ctx context.Context, req protocol.Request[protocol.OwnedKey]) (protocol.Response, error) {
	key := req.Payload.Key()
	value, ok := h.store.Get(key)
	if !ok {
		return protocol.Response{Status: protocol.StatusNotFound, Key: key}, nil
	}
	return protocol.Response{Status: protocol.StatusOK, Key: key, Value: value}, nil
}
