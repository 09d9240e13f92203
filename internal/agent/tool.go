package agent

import (
	"context"
	"fmt"
)

// ToolSpec describes a tool to the model. Parameters is a JSON Schema
// object for the tool's arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolResult is a tool invocation's outcome.
type ToolResult struct {
	// Content is the text handed back to the model.
	Content string
	// Evidence counts the sources the call surfaced, zero when none.
	Evidence int
}

// ToolHandler executes one tool call. A returned error aborts the exchange;
// expected empty outcomes (nothing found) are reported in Content instead.
type ToolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// Tool pairs a spec with its handler.
type Tool struct {
	Spec    ToolSpec
	Handler ToolHandler
}

// Registry holds the tools exposed to the model. It is populated at
// construction and read-only afterwards.
type Registry struct {
	tools map[string]Tool
	specs []ToolSpec
}

// NewRegistry creates a registry from the given tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Spec.Name == "" {
			return nil, fmt.Errorf("tool name is empty")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", t.Spec.Name)
		}
		if _, exists := r.tools[t.Spec.Name]; exists {
			return nil, fmt.Errorf("duplicate tool %q", t.Spec.Name)
		}
		r.tools[t.Spec.Name] = t
		r.specs = append(r.specs, t.Spec)
	}
	return r, nil
}

// Specs returns the tool descriptions for the model.
func (r *Registry) Specs() []ToolSpec { return r.specs }

// Execute runs the named tool. An unknown name returns an error result to
// the model rather than failing the exchange; models occasionally
// hallucinate tool names and can recover when told.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (*ToolResult, error) {
	t, ok := r.tools[call.Name]
	if !ok {
		return &ToolResult{Content: fmt.Sprintf("unknown tool %q", call.Name)}, nil
	}
	return t.Handler(ctx, call.Arguments)
}
