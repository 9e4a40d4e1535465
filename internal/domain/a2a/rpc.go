package a2a

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the wire revision every envelope must carry.
const ProtocolVersion = "2.0"

// Methods the RPC gateway dispatches on.
const (
	MethodMessageSend       = "message/send"
	MethodMessageSendStream = "message/send_stream"
	MethodTaskGet           = "task/get"
	MethodTaskCancel        = "task/cancel"
)

// Request is the wire envelope for one RPC call. Params stays raw until the
// method tag selects the concrete parameter type to decode it into.
type Request struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params,omitempty"`
	ID              any             `json:"id"`
}

// Response is the non-streaming wire envelope. Exactly one of Result and
// Error is set.
type Response struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ID              any             `json:"id"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *Error          `json:"error,omitempty"`
}

// Error is the wire-level error object carried in place of a result. It
// doubles as a Go error so transport code can hand it straight to callers.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Stable error codes, following the JSON-RPC convention.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeTaskNotFound   = -32001
)

// NewError builds a wire error with a formatted message.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// SendParams carries the inbound message for message/send and
// message/send_stream.
type SendParams struct {
	Message Message `json:"message"`
}

// QueryParams identifies an existing task for task/get and task/cancel.
type QueryParams struct {
	ID string `json:"id"`
}

// TaskPushConfig is the push-notification configuration attached to a task.
// The mesh stores nothing for these; the operations echo for protocol
// completeness only.
type TaskPushConfig struct {
	TaskID string         `json:"taskId"`
	Config map[string]any `json:"pushNotificationConfig"`
}
