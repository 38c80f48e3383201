package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/konexhq/chatbridge/bridge/engine/ports"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider implements the Provider port against a Gemini-style
// generateContent HTTP endpoint. The credential travels in a header, never
// in the URL, so it stays out of logs.
type GeminiProvider struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewGeminiProvider(baseURL string, timeout time.Duration, logger zerolog.Logger) *GeminiProvider {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiToolBlock struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature float32 `json:"temperature"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	Tools             []geminiToolBlock      `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one non-streaming generateContent call with the given
// credential.
func (p *GeminiProvider) Generate(ctx context.Context, credential, model string, in ports.PromptInput) (ports.Completion, error) {
	reqBody := geminiRequest{
		Contents:         make([]geminiContent, 0, len(in.Messages)),
		GenerationConfig: geminiGenerationConfig{Temperature: 0.7},
	}
	if in.System != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: in.System}}}
	}
	for _, msg := range in.Messages {
		reqBody.Contents = append(reqBody.Contents, geminiContent{
			Role:  msg.Role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}
	if len(in.Tools) > 0 {
		block := geminiToolBlock{FunctionDeclarations: make([]geminiFunctionDeclaration, 0, len(in.Tools))}
		for _, spec := range in.Tools {
			block.FunctionDeclarations = append(block.FunctionDeclarations, geminiFunctionDeclaration{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  json.RawMessage(spec.JSONSchema),
			})
		}
		reqBody.Tools = []geminiToolBlock{block}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", credential)

	resp, err := p.client.Do(req)
	if err != nil {
		return ports.Completion{}, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ports.Completion{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return ports.Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		perr := &ports.ProviderError{StatusCode: resp.StatusCode}
		if parsed.Error != nil {
			perr.Code = parsed.Error.Status
			perr.Message = parsed.Error.Message
		} else {
			perr.Message = http.StatusText(resp.StatusCode)
		}
		return ports.Completion{}, perr
	}

	var completion ports.Completion
	if len(parsed.Candidates) > 0 {
		for _, part := range parsed.Candidates[0].Content.Parts {
			if part.FunctionCall != nil {
				completion.Parts = append(completion.Parts, ports.Part{
					ToolCall: &ports.ToolCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args},
				})
				continue
			}
			if part.Text != "" {
				completion.Parts = append(completion.Parts, ports.Part{Text: part.Text})
			}
		}
	}
	return completion, nil
}

var _ ports.Provider = (*GeminiProvider)(nil)
