package dispatch

import (
	"context"
	"errors"
)

var ErrInvalidCapacity = errors.New("dispatch: gate capacity must be positive")

// Gate bounds the number of in-flight calls on an inner handler. Ready
// acquires one of a fixed pool of slots, blocking until a slot frees or the
// context ends; the paired Call returns the slot when it finishes.
type Gate[Req, Resp any] struct {
	inner Handler[Req, Resp]
	slots chan struct{}
}

func NewGate[Req, Resp any](inner Handler[Req, Resp], capacity int) (*Gate[Req, Resp], error) {
	if inner == nil {
		return nil, ErrNilHandler
	}
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Gate[Req, Resp]{
		inner: inner,
		slots: make(chan struct{}, capacity),
	}, nil
}

func (g *Gate[Req, Resp]) Ready(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := g.inner.Ready(ctx); err != nil {
		<-g.slots
		return err
	}
	return nil
}

func (g *Gate[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	defer func() { <-g.slots }()
	return g.inner.Call(ctx, req)
}

// InFlight reports how many reservations are currently held.
func (g *Gate[Req, Resp]) InFlight() int {
	return len(g.slots)
}

func (g *Gate[Req, Resp]) Capacity() int {
	return cap(g.slots)
}
