package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/app"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/config"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question about the documentation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "cli",
		"session id; repeated asks with the same id share history")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	orchestrator, err := a.Orchestrator(ctx)
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	answer, err := orchestrator.Answer(ctx, askSessionID, question)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if answer.Degraded {
		fmt.Println("\n(note: tool budget ran out; the answer may be incomplete)")
	}
	logger.Debug("exchange complete",
		"evidence", answer.EvidenceCount,
		"requests", answer.Usage.Requests,
		"input_tokens", answer.Usage.InputTokens,
		"output_tokens", answer.Usage.OutputTokens)
	return nil
}
