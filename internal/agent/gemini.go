package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/session"
)

// GeminiConfig holds model settings for the Gemini adapter.
type GeminiConfig struct {
	APIKey      string
	Model       string // e.g. gemini-2.5-flash
	Temperature float64
	MaxTokens   int
}

// Gemini adapts the Gemini API to ModelClient.
// Gemini is safe for concurrent use.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGemini creates a Gemini-backed model client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg, logger: logger}, nil
}

// Generate implements ModelClient. Provider failures that look transient
// (rate limits, server errors, timeouts) come back wrapped in
// *TransientError so the orchestrator retries them.
func (g *Gemini) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	temp := float32(g.cfg.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if g.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toDeclarations(req.Tools)}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		if transientModelError(err) {
			return nil, &TransientError{Err: err}
		}
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &GenerateResponse{}
	if resp.UsageMetadata != nil {
		out.Usage = session.Usage{
			Requests:     1,
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	} else {
		out.Usage = session.Usage{Requests: 1}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		case part.Text != "":
			text.WriteString(part.Text)
		}
	}
	out.Text = text.String()
	return out, nil
}

// toContents converts orchestrator messages to the Gemini wire shape.
func toContents(messages []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.ToolCall != nil:
			contents = append(contents, &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
					Name: m.ToolCall.Name,
					Args: m.ToolCall.Arguments,
				}}},
			})
		case m.Role == roleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					Name:     m.ToolName,
					Response: map[string]any{"content": m.ToolResult},
				}}},
			})
		case m.Role == roleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Text}},
			})
		case m.Role == roleUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Text}},
			})
		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	return contents, nil
}

// toDeclarations converts tool specs to Gemini function declarations.
func toDeclarations(tools []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		}
	}
	return decls
}

// transientModelError classifies provider failures worth a retry.
func transientModelError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "500", "502", "503", "504",
		"rate limit", "resource exhausted", "timeout",
		"deadline exceeded", "unavailable", "overloaded", "internal error",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
