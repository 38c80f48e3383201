package engineports

import (
	"context"
	"encoding/json"
)

// ToolSpec describes a callable tool exposed to the model.
type ToolSpec struct {
	Name        string // unique logical name
	Description string // concise doc for model selection
	JSONSchema  []byte // JSON schema for args
}

// ToolCall represents a model-invoked function with JSON arguments.
type ToolCall struct {
	Name string
	Args json.RawMessage
}

// ToolResult is what executing a tool call produced. Reply is injected
// verbatim into the outgoing reply text; Feedback is round-tripped to the
// model as a tool turn on the next iteration. Either or both may be empty.
type ToolResult struct {
	Reply    string
	Feedback string
}

// Tool defines the runtime that executes a tool call.
type Tool interface {
	Name() string
	Description() string
	Schema() []byte
	Invoke(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

type callerIDKey struct{}

// WithCallerID scopes a request context to the caller a tool acts on behalf of.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDKey{}, callerID)
}

// CallerIDFromContext returns the caller identity set by the engine.
func CallerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(callerIDKey{}).(string)
	return id, ok
}
