// Package tools defines the port for invoking named record tools.
package tools

import "context"

// Caller invokes a named tool with JSON-object arguments and returns the
// tool's text payload. Tool failures surface as errors, never as empty
// payloads.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}
