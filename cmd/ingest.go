package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/app"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/config"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/ingest"
)

var ingestConcurrency int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Crawl the documentation and index it into the vector store",
	Long: `ingest fetches the configured documentation pages, splits them into
overlapping chunks, embeds each chunk, and upserts the vectors.

Chunk IDs are deterministic, so re-running ingest after a content update
overwrites stale vectors instead of duplicating them.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0,
		"documents processed in parallel (0 = default)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []ingest.Option
	if ingestConcurrency > 0 {
		opts = append(opts, ingest.WithConcurrency(ingestConcurrency))
	}
	pipeline, err := a.Pipeline(opts...)
	if err != nil {
		return err
	}

	stats, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d documents (%d chunks, %d skipped); index now holds %d records.\n",
		stats.Documents, stats.Chunks, stats.Skipped, stats.Indexed)
	return nil
}
