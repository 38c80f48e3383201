package engine

import (
	"strings"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// ConversationAssembler turns persona, stored history, and the new user turn
// into a provider-ready prompt with the gated tool declarations.
type ConversationAssembler struct{}

func NewConversationAssembler() *ConversationAssembler { return &ConversationAssembler{} }

// Build maps stored turns onto the provider's message schema. The stored
// "assistant" role becomes the provider's "model" role; history is assumed
// oldest first and the new user message goes last.
func (a *ConversationAssembler) Build(persona Persona, history []ports.Turn, userMessage string, available []ports.Tool, meta map[string]string) ports.PromptInput {
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	messages := make([]ports.PromptMessage, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		messages = append(messages, ports.PromptMessage{Role: role, Content: norm(turn.Content)})
	}
	messages = append(messages, ports.PromptMessage{Role: "user", Content: norm(userMessage)})

	var specs []ports.ToolSpec
	for _, tool := range available {
		if !persona.Allows(tool.Name()) {
			continue
		}
		specs = append(specs, ports.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			JSONSchema:  tool.Schema(),
		})
	}

	return ports.PromptInput{
		System:   norm(persona.SystemPrompt),
		Messages: messages,
		Tools:    specs,
		Meta:     meta,
	}
}
