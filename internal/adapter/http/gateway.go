// Package http implements the RPC gateway of one agent process: a stateless
// decode/dispatch/encode layer between the wire protocol and the task
// service, plus the agent's discovery and health endpoints.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
	"github.com/Strob0t/CareMesh/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Gateway serves the task protocol for one agent. It holds no request state;
// every call is decoded, dispatched to the task service, and encoded back
// into the wire envelope.
type Gateway struct {
	tasks *service.TaskService
	card  a2a.AgentCard
}

// NewGateway creates a gateway in front of the given task service.
func NewGateway(tasks *service.TaskService, card a2a.AgentCard) *Gateway {
	return &Gateway{tasks: tasks, card: card}
}

// HandleRPC serves POST /rpc. Protocol errors travel in-band as envelope
// error objects with HTTP 200; the envelope, not the HTTP status, is the
// outcome channel.
func (g *Gateway) HandleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req a2a.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, a2a.NewError(a2a.CodeParseError, "parse error: %v", err))
		return
	}
	if req.ProtocolVersion != a2a.ProtocolVersion {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidRequest,
			"unsupported protocol version %q", req.ProtocolVersion))
		return
	}

	// Params decode as a tagged union: the method selects the concrete
	// parameter type before any field is touched.
	switch req.Method {
	case a2a.MethodMessageSend:
		g.handleSend(w, r, req)
	case a2a.MethodMessageSendStream:
		g.handleSendStream(w, r, req)
	case a2a.MethodTaskGet:
		g.handleGet(w, r, req)
	case a2a.MethodTaskCancel:
		g.handleCancel(w, r, req)
	default:
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeMethodNotFound,
			"unknown method %q", req.Method))
	}
}

func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	params, ok := decodeParams[a2a.SendParams](w, req)
	if !ok {
		return
	}
	if len(params.Message.Parts) == 0 {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidParams, "message has no parts"))
		return
	}

	task, err := g.tasks.Send(r.Context(), params.Message)
	if err != nil {
		writeRPCError(w, req.ID, rpcErrorFor(err))
		return
	}
	writeRPCResult(w, req.ID, task)
}

// handleSendStream switches the response to newline-delimited JSON and
// relays each event as soon as the service produces it. Nothing is buffered
// beyond the current line; the connection closes after the final event or
// when the client goes away.
func (g *Gateway) handleSendStream(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	params, ok := decodeParams[a2a.SendParams](w, req)
	if !ok {
		return
	}
	if len(params.Message.Parts) == 0 {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidParams, "message has no parts"))
		return
	}

	flusher, canFlush := w.(http.Flusher)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	stream := g.tasks.SendStream(r.Context(), params.Message)
	for {
		select {
		case item, open := <-stream:
			if !open {
				return
			}
			var line any = item.Event
			if item.Err != nil {
				// Terminal failure after the running event: the error object
				// takes the final line in place of a completed event.
				line = rpcErrorFor(item.Err)
			}
			if err := enc.Encode(line); err != nil {
				slog.Debug("stream write failed, client gone", "error", err)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	params, ok := decodeParams[a2a.QueryParams](w, req)
	if !ok {
		return
	}
	if params.ID == "" {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidParams, "id is required"))
		return
	}

	task, err := g.tasks.Get(r.Context(), params.ID)
	if err != nil {
		writeRPCError(w, req.ID, rpcErrorFor(err))
		return
	}
	writeRPCResult(w, req.ID, task)
}

func (g *Gateway) handleCancel(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	params, ok := decodeParams[a2a.QueryParams](w, req)
	if !ok {
		return
	}
	if params.ID == "" {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidParams, "id is required"))
		return
	}

	task, err := g.tasks.Cancel(r.Context(), params.ID)
	if err != nil {
		writeRPCError(w, req.ID, rpcErrorFor(err))
		return
	}
	writeRPCResult(w, req.ID, task)
}

// HandleAgentCard serves the static discovery document.
func (g *Gateway) HandleAgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.card)
}

// HandleHealth reports liveness for an agent role. The tools role mounts its
// own handler with dependency statuses instead.
func (g *Gateway) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"agent":  g.card.Name,
	})
}

// decodeParams unmarshals the raw params into the method's typed record. A
// missing or malformed params object is an invalid-params protocol error.
func decodeParams[T any](w http.ResponseWriter, req a2a.Request) (T, bool) {
	var v T
	if len(req.Params) == 0 {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidParams, "params are required"))
		return v, false
	}
	if err := json.Unmarshal(req.Params, &v); err != nil {
		writeRPCError(w, req.ID, a2a.NewError(a2a.CodeInvalidParams, "invalid params: %v", err))
		return v, false
	}
	return v, true
}
