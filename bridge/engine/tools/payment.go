package tools

import (
	"context"
	"encoding/json"
	"fmt"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// PaymentLinkSchema defines the JSON schema for payment link parameters.
const PaymentLinkSchema = `{
  "type": "object",
  "properties": {
    "plan_type": {
      "type": "string",
      "enum": ["starter", "pro"],
      "description": "The plan the user wants to buy."
    }
  },
  "required": ["plan_type"]
}`

// LinkGenerator produces a payment URL for the caller. The actual gateway
// integration lives outside the engine.
type LinkGenerator func(ctx context.Context, callerID, planType string) (string, error)

// PaymentLinkTool exposes payment link generation to the model. Without an
// injected generator the tool accepts the call and does nothing, leaving the
// wiring to the integrator.
type PaymentLinkTool struct {
	generate LinkGenerator
}

func NewPaymentLinkTool(generate LinkGenerator) *PaymentLinkTool {
	return &PaymentLinkTool{generate: generate}
}

func (t *PaymentLinkTool) Name() string        { return "generate_payment_link" }
func (t *PaymentLinkTool) Description() string { return "Create a payment link for a plan." }
func (t *PaymentLinkTool) Schema() []byte      { return []byte(PaymentLinkSchema) }

func (t *PaymentLinkTool) Invoke(ctx context.Context, args json.RawMessage) (ports.ToolResult, error) {
	var params struct {
		PlanType string `json:"plan_type"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return ports.ToolResult{}, fmt.Errorf("invalid arguments: %w", err)
	}

	if t.generate == nil {
		return ports.ToolResult{}, nil
	}

	callerID, _ := ports.CallerIDFromContext(ctx)
	link, err := t.generate(ctx, callerID, params.PlanType)
	if err != nil {
		return ports.ToolResult{}, fmt.Errorf("generating payment link: %w", err)
	}
	return ports.ToolResult{Reply: link}, nil
}

var _ ports.Tool = (*PaymentLinkTool)(nil)
