// Package dispatch routes decoded records to request handlers.
//
// A Handler exposes readiness separately from the call itself so callers can
// apply backpressure before committing work: Ready reserves the right to make
// exactly one Call. Middleware such as Gate composes by layering both halves.
package dispatch

import "context"

// Handler processes one request and produces one response.
//
// Ready must be consulted before every Call. A nil return means the handler
// has reserved capacity for exactly one Call; a non-nil return means the
// caller must not call Call for this reservation. Implementations that
// reserve resources in Ready release them when the paired Call finishes.
type Handler[Req, Resp any] interface {
	Ready(ctx context.Context) error
	Call(ctx context.Context, req Req) (Resp, error)
}

// HandlerFunc adapts a function to the Handler interface. It is always ready
// unless the context is already done.
type HandlerFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

func (f HandlerFunc[Req, Resp]) Ready(ctx context.Context) error {
	return ctx.Err()
}

func (f HandlerFunc[Req, Resp]) Call(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}
