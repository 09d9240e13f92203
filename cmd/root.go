// Package cmd implements the rag command line interface.
package cmd

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/log"
)

var (
	verbose  bool
	jsonLogs bool

	// logger is configured by the persistent pre-run and shared by all
	// commands.
	logger log.Logger = log.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "rag",
	Short: "Documentation assistant for the Physical AI book",
	Long: `rag indexes the Physical AI book into a vector store and answers
questions about it with evidence-backed citations.

Typical usage:

  rag ingest              crawl, chunk, embed, and index the documentation
  rag ask "question"      answer one question
  rag chat                interactive conversation
  rag mcp                 serve retrieval as an MCP tool over stdio`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; real deployments use the environment.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = log.New(log.Config{Level: level, JSON: jsonLogs})
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
