// Package skill defines the port between the task protocol runtime and an
// agent's domain logic.
package skill

import (
	"context"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
)

// Invoker turns an inbound message into a reply message. Implementations may
// call out over the network; the task service treats any returned error as an
// invocation failure and never stores a partially built task for it.
type Invoker interface {
	Invoke(ctx context.Context, msg a2a.Message) (a2a.Message, error)
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, msg a2a.Message) (a2a.Message, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, msg a2a.Message) (a2a.Message, error) {
	return f(ctx, msg)
}
