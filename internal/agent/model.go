package agent

import (
	"context"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/session"
)

// Message roles on the model wire.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
)

// ToolCall is a model request to invoke a registered tool.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// Message is one entry in a model conversation.
// Exactly one of Text, ToolCall, or ToolResult is set.
type Message struct {
	Role     string
	Text     string
	ToolCall *ToolCall
	// ToolResult carries a tool's output back to the model; ToolName names
	// the tool that produced it.
	ToolResult string
	ToolName   string
}

// GenerateRequest is one model invocation.
type GenerateRequest struct {
	System   string
	Messages []Message
	// Tools the model may call this turn. Empty means the model must
	// answer directly.
	Tools []ToolSpec
}

// GenerateResponse is the model's reply: either final text or one or more
// tool calls to satisfy first.
type GenerateResponse struct {
	Text      string
	ToolCalls []ToolCall
	Usage     session.Usage
}

// ModelClient generates responses from a language model.
// Implementations classify provider failures via TransientError so the
// orchestrator knows what is worth retrying.
type ModelClient interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
