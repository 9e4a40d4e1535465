// Package a2a defines the entities of the agent-to-agent task protocol:
// messages, tasks, task status, and the streaming status-update event.
package a2a

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartKindText is the only part kind the mesh exchanges today.
const PartKindText = "text"

// Part is one content fragment of a message.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// Message is an ordered sequence of parts with an identity and a role.
// TaskID and ContextID are stamped on by the task handler once the message
// is attached to a task; the message is otherwise immutable.
type Message struct {
	MessageID string `json:"messageId"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	TaskID    string `json:"taskId,omitempty"`
	ContextID string `json:"contextId,omitempty"`
}

// NewUserMessage builds a single-text-part message authored by the user role.
func NewUserMessage(text string) Message {
	return Message{
		MessageID: uuid.NewString(),
		Role:      RoleUser,
		Parts:     []Part{{Kind: PartKindText, Text: text}},
	}
}

// NewAgentMessage builds a single-text-part message authored by the agent role.
func NewAgentMessage(text string) Message {
	return Message{
		MessageID: uuid.NewString(),
		Role:      RoleAgent,
		Parts:     []Part{{Kind: PartKindText, Text: text}},
	}
}

// Text returns the first text part of the message, or "" when there is none.
func (m Message) Text() string {
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			return p.Text
		}
	}
	return ""
}

// TaskState enumerates the lifecycle states of a task.
type TaskState string

const (
	StateRunning   TaskState = "running"
	StateCompleted TaskState = "completed"
	StateCanceled  TaskState = "canceled"
)

// TaskStatus is a state tag plus the latest reply message, when completed.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Task is the protocol-level record of one request/response cycle.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	History   []Message  `json:"history"`
}

// TaskStatusUpdateEvent is the streaming-path notification. It is emitted
// once with Final=false while the skill runs and once with Final=true when
// the task reaches a terminal status; it is never persisted.
type TaskStatusUpdateEvent struct {
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}
