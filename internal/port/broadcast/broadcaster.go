// Package broadcast defines the port for pushing audit events to live
// watchers.
package broadcast

import "context"

// Broadcaster fans a typed event out to every connected watcher. Delivery
// is fire-and-forget; a slow or gone watcher never blocks the caller.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
