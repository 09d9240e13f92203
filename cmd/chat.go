package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/agent"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/app"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/config"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation about the documentation",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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

	fmt.Println("Ask about the Physical AI book. Type 'exit' or press Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := orchestrator.Answer(ctx, "chat", line)
		switch {
		case errors.Is(err, agent.ErrQueryTooLong):
			fmt.Printf("That question is too long (limit %d characters).\n", agent.MaxQueryLen)
			continue
		case errors.Is(err, agent.ErrModelUnavailable):
			fmt.Println("The model is unavailable right now; please try again.")
			continue
		case err != nil:
			return err
		}

		fmt.Println(answer.Text)
		if answer.Degraded {
			fmt.Println("(note: tool budget ran out; the answer may be incomplete)")
		}
		fmt.Println()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}

	sess, err := a.Sessions.GetOrCreate("chat")
	if err == nil {
		usage := sess.Usage()
		logger.Info("chat session closed",
			"turns", len(sess.History()),
			"requests", usage.Requests,
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens)
	}
	return nil
}
