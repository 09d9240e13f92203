package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	mcpSDK "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/app"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/config"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve documentation retrieval as an MCP tool over stdio",
	Long: `mcp runs a Model Context Protocol server on stdin/stdout exposing
the retrieval tool, so MCP-capable clients can search the indexed book.
The generative model is not involved; only retrieval is exposed.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(mcp.Config{
		Name:    "rag-docs",
		Version: Version,
	}, a.Retriever, logger)
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("serving MCP on stdio", "version", Version)
	return server.Run(ctx, &mcpSDK.StdioTransport{})
}
