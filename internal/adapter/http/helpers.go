package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/a2a"
)

// ---------------------------------------------------------------------------
// Plain JSON helpers (card, health)
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// ---------------------------------------------------------------------------
// Envelope helpers
// ---------------------------------------------------------------------------

func writeRPCResult(w http.ResponseWriter, id any, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal RPC result", "error", err)
		writeRPCError(w, id, a2a.NewError(a2a.CodeInternalError, "internal error"))
		return
	}
	writeJSON(w, http.StatusOK, a2a.Response{
		ProtocolVersion: a2a.ProtocolVersion,
		ID:              id,
		Result:          raw,
	})
}

func writeRPCError(w http.ResponseWriter, id any, rpcErr *a2a.Error) {
	writeJSON(w, http.StatusOK, a2a.Response{
		ProtocolVersion: a2a.ProtocolVersion,
		ID:              id,
		Error:           rpcErr,
	})
}

// rpcErrorFor maps a service error onto a stable wire code. Unknown task ids
// get the not-found code; everything else, including skill invocation
// failures, is an internal error.
func rpcErrorFor(err error) *a2a.Error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return a2a.NewError(a2a.CodeTaskNotFound, "task not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		return a2a.NewError(a2a.CodeInvalidParams, "%v", err)
	default:
		slog.Error("rpc operation failed", "error", err)
		return a2a.NewError(a2a.CodeInternalError, "%v", err)
	}
}
