package engineports

import (
	"context"
	"fmt"
)

// PromptMessage represents a single chat message used to build prompts.
type PromptMessage struct {
	Role    string // "user", "model", "tool"
	Content string
}

// PromptInput aggregates everything the provider needs to produce a completion.
type PromptInput struct {
	System   string            // rendered persona system prompt
	Messages []PromptMessage   // ordered chat history plus the new user turn
	Tools    []ToolSpec        // tool declarations available to the model
	Meta     map[string]string // lightweight metadata for tracing
}

// Part is one element of a model response: either literal text or a tool
// invocation. Order within a completion is significant.
type Part struct {
	Text     string
	ToolCall *ToolCall
}

// Completion is the provider's response, an ordered sequence of parts.
type Completion struct {
	Parts []Part
}

// Provider is the abstraction over hosted LLM backends. The credential is
// supplied per call so the rotator can swap it between attempts.
type Provider interface {
	Generate(ctx context.Context, credential, model string, in PromptInput) (Completion, error)
}

// ProviderError carries the provider's failure signal so callers can
// classify capacity errors without string matching.
type ProviderError struct {
	StatusCode int    // HTTP-equivalent status, 0 when unknown
	Code       string // provider error code, e.g. "RESOURCE_EXHAUSTED"
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
}
