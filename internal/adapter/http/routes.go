package http

import (
	"github.com/go-chi/chi/v5"
)

// MountAgentRoutes registers the protocol surface of one agent on the given
// chi router: the RPC endpoint, the discovery card, and liveness.
func MountAgentRoutes(r chi.Router, g *Gateway) {
	r.Post("/rpc", g.HandleRPC)
	r.Get("/.well-known/agent-card.json", g.HandleAgentCard)
	r.Get("/health", g.HandleHealth)
}
