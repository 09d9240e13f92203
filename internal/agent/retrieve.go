package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/retriever"
)

// RetrieveToolName is the name the model uses to search the documentation.
const RetrieveToolName = "retrieve_context"

// ContextRetriever is the slice of the retriever the tool needs.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]retriever.Result, error)
}

// NewRetrieveTool builds the documentation search tool. ErrNoEvidence from
// the retriever is reported to the model as an ordinary result, so the
// model can say it found nothing instead of the exchange failing.
func NewRetrieveTool(r ContextRetriever) Tool {
	return Tool{
		Spec: ToolSpec{
			Name: RetrieveToolName,
			Description: "Search the Physical AI book for passages relevant to a question. " +
				"Returns numbered source excerpts with their titles and URLs.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query, phrased as the information need.",
					},
					"top_k": map[string]any{
						"type":        "integer",
						"description": "How many passages to return. Defaults to 5.",
					},
					"module": map[string]any{
						"type":        "string",
						"description": "Restrict results to one book module, e.g. \"module-01\".",
					},
				},
				"required": []string{"query"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return &ToolResult{Content: "the query argument is required"}, nil
			}

			var opts []retriever.Option
			// JSON numbers decode as float64.
			if k, ok := args["top_k"].(float64); ok && k >= 1 {
				opts = append(opts, retriever.WithTopK(int(k)))
			}
			if m, ok := args["module"].(string); ok && strings.TrimSpace(m) != "" {
				opts = append(opts, retriever.WithModule(strings.TrimSpace(m)))
			}

			results, err := r.Retrieve(ctx, query, opts...)
			if errors.Is(err, retriever.ErrNoEvidence) {
				return &ToolResult{Content: "No relevant content found in the documentation."}, nil
			}
			if err != nil {
				return nil, fmt.Errorf("retrieving context: %w", err)
			}

			return &ToolResult{
				Content:  FormatEvidence(results),
				Evidence: len(results),
			}, nil
		},
	}
}

// FormatEvidence renders results as numbered sources the model can cite.
func FormatEvidence(results []retriever.Result) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d] %s", i+1, res.Title)
		if res.Heading != "" && res.Heading != res.Title {
			fmt.Fprintf(&b, " (%s)", res.Heading)
		}
		fmt.Fprintf(&b, "\nURL: %s\nRelevance: %.2f\n%s", res.URL, res.Score, res.Text)
	}
	return b.String()
}
