package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for the audit feed. The type tells a watcher what
// kind of record activity it is looking at.
const (
	EventAudit   = "audit"
	EventUpdate  = "update"
	EventCase    = "case"
	EventHistory = "history"
)

// AuditEvent is broadcast once per record tool invocation. Only the fields
// that apply to the invoked tool are set.
type AuditEvent struct {
	Tool      string `json:"tool"`
	PatientID int64  `json:"patient_id,omitempty"`
	CaseID    int64  `json:"case_id,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it to every watcher.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
