// Package transport provides Transport implementations binding client
// sessions to a coordinator: in-process and HTTP. Each is an independent
// implementation of the one-method contract; the session never learns
// which carrier it talks through.
package transport

import (
	"context"

	"github.com/DoyleJ11/chess-session-backend/internal/coordinator"
	"github.com/DoyleJ11/chess-session-backend/internal/protocol"
)

// Local hands requests to a coordinator in the same process.
type Local struct {
	c *coordinator.Coordinator
}

func NewLocal(c *coordinator.Coordinator) *Local { return &Local{c: c} }

func (t *Local) Send(ctx context.Context, req protocol.Request) protocol.Response {
	return t.c.Handle(ctx, req)
}
