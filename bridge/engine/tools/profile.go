// Package tools implements the capabilities the model may invoke during a
// conversation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// UpdateProfileSchema defines the JSON schema for profile update parameters.
const UpdateProfileSchema = `{
  "type": "object",
  "properties": {
    "data": {
      "type": "object",
      "description": "Free-form facts about the user worth remembering, e.g. {\"city\": \"Jacmel\"}"
    }
  },
  "required": ["data"]
}`

// UpdateProfileTool merges model-supplied facts into the caller's stored
// profile. Existing keys not mentioned in the update are preserved.
type UpdateProfileTool struct {
	store ports.ConversationStore
}

func NewUpdateProfileTool(store ports.ConversationStore) *UpdateProfileTool {
	return &UpdateProfileTool{store: store}
}

func (t *UpdateProfileTool) Name() string        { return "update_profile" }
func (t *UpdateProfileTool) Description() string { return "Save user details to memory." }
func (t *UpdateProfileTool) Schema() []byte      { return []byte(UpdateProfileSchema) }

func (t *UpdateProfileTool) Invoke(ctx context.Context, args json.RawMessage) (ports.ToolResult, error) {
	var params struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return ports.ToolResult{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if len(params.Data) == 0 {
		return ports.ToolResult{}, nil
	}

	callerID, ok := ports.CallerIDFromContext(ctx)
	if !ok {
		return ports.ToolResult{}, fmt.Errorf("no caller bound to request context")
	}

	profile, err := t.store.Profile(ctx, callerID)
	if err != nil || profile == nil {
		profile = map[string]any{}
	}
	for k, v := range params.Data {
		profile[k] = v
	}

	if err := t.store.SaveProfile(ctx, callerID, profile); err != nil {
		return ports.ToolResult{}, fmt.Errorf("saving profile: %w", err)
	}
	return ports.ToolResult{}, nil
}

var _ ports.Tool = (*UpdateProfileTool)(nil)
