package lookup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/keywire/internal/protocol"
	"github.com/danmuck/keywire/internal/store"
)

func decodeKey(t *testing.T, key uint64) protocol.Request[protocol.OwnedKey] {
	t.Helper()
	req, err := protocol.DecodeKeyRequest(protocol.EncodeKey(key))
	require.NoError(t, err)
	return req
}

func TestCallReturnsStoredValue(t *testing.T) {
	s := store.New()
	s.Put(1, []byte("one"))
	h := NewHandler(s)

	resp, err := h.Call(context.Background(), decodeKey(t, 1))
	require.NoError(t, err)
	require.Equal(t, protocol.StatusOK, resp.Status)
	require.Equal(t, uint64(1), resp.Key)
	require.Equal(t, "one", resp.Value.String())
}

func TestCallMissingKeyIsNotFound(t *testing.T) {
	h := NewHandler(store.New())

	resp, err := h.Call(context.Background(), decodeKey(t, 404))
	require.NoError(t, err, "a miss is a response, not a handler failure")
	require.Equal(t, protocol.StatusNotFound, resp.Status)
	require.Equal(t, uint64(404), resp.Key)
	require.Equal(t, 0, resp.Value.Len())
}

func TestCallValueSharesStoreBytes(t *testing.T) {
	s := store.New()
	s.Put(2, []byte("zero-copy"))
	h := NewHandler(s)

	resp, err := h.Call(context.Background(), decodeKey(t, 2))
	require.NoError(t, err)

	stored, _ := s.Get(2)
	require.Equal(t, &stored.Bytes()[0], &resp.Value.Bytes()[0])
}

func TestReadyTracksContext(t *testing.T) {
	h := NewHandler(store.New())
	require.NoError(t, h.Ready(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.Ready(ctx), context.Canceled)
}
