// Package mcp exposes documentation retrieval as an MCP tool server, so
// any MCP-capable client can search the indexed book over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/agent"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/retriever"
)

// Config holds MCP server settings.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP SDK server around the retriever.
type Server struct {
	mcpServer *mcp.Server
	retriever agent.ContextRetriever
	logger    *slog.Logger
}

// NewServer creates an MCP server exposing the retrieval tool.
func NewServer(cfg Config, ret agent.ContextRetriever, logger *slog.Logger) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if ret == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		retriever: ret,
		logger:    logger,
	}
	if err := s.registerRetrieve(); err != nil {
		return nil, fmt.Errorf("registering retrieve tool: %w", err)
	}
	return s, nil
}

// Run serves MCP on the given transport until the context is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

// RetrieveInput is the retrieval tool's argument schema.
type RetrieveInput struct {
	Query  string `json:"query" jsonschema:"The search query, phrased as the information need"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"How many passages to return, defaults to 5"`
	Module string `json:"module,omitempty" jsonschema:"Restrict results to one module, e.g. module-02"`
}

func (s *Server) registerRetrieve() error {
	inputSchema, err := jsonschema.For[RetrieveInput](nil)
	if err != nil {
		return fmt.Errorf("building input schema: %w", err)
	}

	tool := &mcp.Tool{
		Name: agent.RetrieveToolName,
		Description: "Search the Physical AI book for passages relevant to a question. " +
			"Returns numbered source excerpts with their titles and URLs.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, s.retrieve)
	return nil
}

func (s *Server) retrieve(ctx context.Context, _ *mcp.CallToolRequest, in RetrieveInput) (*mcp.CallToolResult, any, error) {
	if in.Query == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "the query argument is required"}},
			IsError: true,
		}, nil, nil
	}

	var opts []retriever.Option
	if in.TopK > 0 {
		opts = append(opts, retriever.WithTopK(in.TopK))
	}
	if in.Module != "" {
		opts = append(opts, retriever.WithModule(in.Module))
	}

	results, err := s.retriever.Retrieve(ctx, in.Query, opts...)
	if errors.Is(err, retriever.ErrNoEvidence) {
		// An empty corpus match is an answer, not a protocol error.
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "No relevant content found in the documentation."}},
		}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("retrieving context: %w", err)
	}

	s.logger.Debug("served retrieval", "query", in.Query, "results", len(results))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: agent.FormatEvidence(results)}},
	}, nil, nil
}
