package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

// Options controls per-engine behavior.
type Options struct {
	// Model is the default model identifier, used when the persona does not
	// pin one of its own.
	Model string
	// HistoryLimit is the number of stored turns loaded per request.
	HistoryLimit int
	// MaxIterations bounds the tool feedback loop.
	MaxIterations int
	// ToolTimeout applies per tool invocation.
	ToolTimeout time.Duration
	// FallbackReply substitutes for an empty model response.
	FallbackReply string
	// AdminPhones is the allow-list that elevates a caller's persona.
	AdminPhones []string
	// SystemKeys are the shared provider credentials tried after the
	// caller's own.
	SystemKeys []string
}

func DefaultOptions() Options {
	return Options{
		Model:         "gemini-2.0-flash",
		HistoryLimit:  10,
		MaxIterations: 3,
		ToolTimeout:   30 * time.Second,
		FallbackReply: "...",
	}
}

// ChatRequest is one inbound message from the messaging platform.
type ChatRequest struct {
	Phone   string // phone identity of the caller
	URN     string // conversation identity (caller URN)
	Message string
	Groups  []string // membership groups supplied by the platform
}

// Engine turns a persona, conversation history, and a credential pool into a
// single model response, dispatching tool calls along the way.
type Engine struct {
	rotator   *CredentialRotator
	assembler *ConversationAssembler
	store     ports.ConversationStore
	tools     map[string]ports.Tool
	tracer    ports.Tracer
	logger    zerolog.Logger
	opts      Options
}

func NewEngine(
	rotator *CredentialRotator,
	assembler *ConversationAssembler,
	store ports.ConversationStore,
	toolset []ports.Tool,
	tracer ports.Tracer,
	logger zerolog.Logger,
	opts Options,
) *Engine {
	if opts.Model == "" {
		opts.Model = DefaultOptions().Model
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 3
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 30 * time.Second
	}
	if opts.FallbackReply == "" {
		opts.FallbackReply = "..."
	}

	tools := make(map[string]ports.Tool, len(toolset))
	for _, tool := range toolset {
		tools[tool.Name()] = tool
	}

	return &Engine{
		rotator:   rotator,
		assembler: assembler,
		store:     store,
		tools:     tools,
		tracer:    tracer,
		logger:    logger,
		opts:      opts,
	}
}

// ProcessChat handles one request end to end: load state, resolve the
// persona, persist the inbound turn, invoke the model with rotation, run the
// tool dispatch loop, and persist the finalized reply. Every successful
// request stores exactly one user turn and one assistant turn.
func (e *Engine) ProcessChat(ctx context.Context, req ChatRequest) (string, error) {
	ctx = ports.WithCallerID(ctx, req.URN)
	ctx, finish := e.tracer.StartSpan(ctx, "process_chat", map[string]any{
		"request_id": uuid.NewString(),
		"caller":     req.URN,
	})

	profile, err := e.store.Profile(ctx, req.URN)
	if err != nil {
		e.logger.Debug().Err(err).Str("caller", req.URN).Msg("profile read failed, starting empty")
		profile = nil
	}
	if profile == nil {
		profile = map[string]any{}
	}

	record, err := e.store.CredentialRecord(ctx, req.Phone)
	if err != nil {
		finish(err)
		return "", fmt.Errorf("loading credential record: %w", err)
	}

	history, err := e.store.History(ctx, req.URN, e.opts.HistoryLimit)
	if err != nil {
		e.logger.Warn().Err(err).Str("caller", req.URN).Msg("history read failed, starting fresh")
		history = nil
	}

	caller := CallerContext{
		URN:        req.URN,
		Phone:      req.Phone,
		Groups:     req.Groups,
		Subscriber: record != nil,
		Profile:    profile,
	}
	selection := ResolvePersona(caller, e.opts.AdminPhones)
	if selection.Kind == PersonaElevated {
		e.logger.Warn().Str("phone", req.Phone).Msg("elevated persona active")
	}

	candidates := CandidateCredentials(record, e.opts.SystemKeys)

	// The inbound turn is persisted before the model runs so it survives
	// provider failure.
	if err := e.store.SaveTurn(ctx, req.URN, ports.Turn{Role: "user", Content: req.Message, CreatedAt: time.Now()}); err != nil {
		finish(err)
		return "", fmt.Errorf("saving user turn: %w", err)
	}

	in := e.assembler.Build(selection.Persona, history, req.Message, e.gatedTools(selection.Persona), map[string]string{
		"caller": req.URN,
	})

	reply, err := e.dispatch(ctx, selection, in, candidates)
	if err != nil {
		finish(err)
		return "", err
	}

	if strings.TrimSpace(reply) == "" {
		reply = e.opts.FallbackReply
	}

	if err := e.store.SaveTurn(ctx, req.URN, ports.Turn{Role: "assistant", Content: reply, CreatedAt: time.Now()}); err != nil {
		finish(err)
		return "", fmt.Errorf("saving assistant turn: %w", err)
	}

	finish(nil)
	return reply, nil
}

// dispatch runs the bounded tool loop: invoke the model, walk response parts
// in order, execute tool calls, and re-invoke with tool feedback appended
// until the model emits pure text or the iteration budget runs out.
func (e *Engine) dispatch(ctx context.Context, selection PersonaSelection, in ports.PromptInput, candidates []string) (string, error) {
	model := selection.Persona.Model
	if model == "" {
		model = e.opts.Model
	}

	var reply strings.Builder
	for iteration := 1; ; iteration++ {
		ctx, span := e.tracer.StartSpan(ctx, "provider_call", map[string]any{"iteration": iteration})
		completion, err := e.rotator.Invoke(ctx, model, in, candidates)
		span(err)
		if err != nil {
			return "", err
		}

		var assistantText strings.Builder
		var feedback []ports.PromptMessage
		for _, part := range completion.Parts {
			if part.ToolCall != nil {
				result, ok := e.runTool(ctx, selection.Persona, *part.ToolCall)
				if !ok {
					continue
				}
				reply.WriteString(result.Reply)
				if result.Feedback != "" {
					feedback = append(feedback, ports.PromptMessage{Role: "tool", Content: result.Feedback})
				}
				continue
			}
			if part.Text != "" {
				reply.WriteString(part.Text)
				assistantText.WriteString(part.Text)
			}
		}

		if len(feedback) == 0 {
			return reply.String(), nil
		}
		if iteration >= e.opts.MaxIterations {
			e.logger.Warn().Int("iterations", iteration).Msg("tool feedback dropped, iteration budget exhausted")
			return reply.String(), nil
		}

		in.Messages = append(in.Messages, ports.PromptMessage{Role: "model", Content: assistantText.String()})
		in.Messages = append(in.Messages, feedback...)
	}
}

// runTool validates and executes one tool call. Failures are contained: an
// unknown, ungated, invalid, or failing tool is logged and skipped so the
// rest of the response still reaches the caller.
func (e *Engine) runTool(ctx context.Context, persona Persona, call ports.ToolCall) (ports.ToolResult, bool) {
	tool, exists := e.tools[call.Name]
	if !exists || !persona.Allows(call.Name) {
		e.logger.Warn().Str("tool", call.Name).Msg("tool call rejected")
		return ports.ToolResult{}, false
	}

	if err := validateToolArgs(tool.Schema(), call.Args); err != nil {
		e.logger.Warn().Err(err).Str("tool", call.Name).Msg("tool arguments rejected")
		return ports.ToolResult{}, false
	}

	toolCtx, cancel := context.WithTimeout(ctx, e.opts.ToolTimeout)
	defer cancel()

	e.logger.Info().Str("tool", call.Name).Msg("dispatching tool")
	result, err := tool.Invoke(toolCtx, call.Args)
	if err != nil {
		e.logger.Error().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		return ports.ToolResult{}, false
	}
	return result, true
}

func (e *Engine) gatedTools(persona Persona) []ports.Tool {
	gated := make([]ports.Tool, 0, len(e.tools))
	for _, name := range persona.AllowedTools {
		if tool, ok := e.tools[name]; ok {
			gated = append(gated, tool)
		}
	}
	return gated
}

// validateToolArgs checks the model-supplied arguments against the tool's
// declared JSON schema before anything side-effecting runs.
func validateToolArgs(schema []byte, args json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(details, "; "))
	}
	return nil
}
