package skill

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
	"github.com/Strob0t/CareMesh/internal/port/tools"
)

// Records serves record lookups by delegating to the tools service. The
// request text picks the tool; the tool payload is embedded in the reply. A
// tool failure is an invocation failure, so the caller sees a failed leg
// rather than a half-built reply.
type Records struct {
	tools tools.Caller
}

// NewRecords creates the records skill around a tool caller.
func NewRecords(caller tools.Caller) *Records {
	return &Records{tools: caller}
}

// Invoke implements the skill contract.
func (s *Records) Invoke(ctx context.Context, msg a2a.Message) (a2a.Message, error) {
	lowered := strings.ToLower(msg.Text())

	var (
		tool   string
		args   map[string]any
		prefix string
	)
	switch {
	case strings.Contains(lowered, "list"):
		tool = "list_patients"
		args = map[string]any{"limit": 5}
		prefix = "Patient list (limit 5): "
	case strings.Contains(lowered, "history"):
		tool = "get_patient_history"
		args = map[string]any{"patient_id": 1}
		prefix = "Encounter history for patient 1: "
	default:
		tool = "get_patient"
		args = map[string]any{"patient_id": 1}
		prefix = "Patient record: "
	}

	payload, err := s.tools.CallTool(ctx, tool, args)
	if err != nil {
		return a2a.Message{}, fmt.Errorf("%s: %w", tool, err)
	}
	return a2a.NewAgentMessage(prefix + payload), nil
}
