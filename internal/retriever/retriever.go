// Package retriever performs validated semantic search over the chunk index.
//
// A query is embedded, searched against the vector store, and each hit is
// checked before it may be cited: required metadata present, a well-formed
// source URL, no leftover crawl artifacts in the text, and a similarity
// score above the relevance floor. Hits that fail any check are dropped
// rather than surfaced with a warning; an answer built on malformed evidence
// is worse than an honest "nothing found".
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/embedding"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore"
)

const (
	// DefaultTopK is the number of results returned when no override is given.
	DefaultTopK = 5
	// DefaultMinScore is the relevance floor below which hits are discarded.
	DefaultMinScore = 0.6
)

// ErrNoEvidence indicates the search completed but no hit survived
// validation. It is an expected outcome, not a failure.
var ErrNoEvidence = errors.New("no relevant content found")

// Result is one validated piece of evidence.
type Result struct {
	Text        string
	URL         string
	Title       string
	Module      string
	Heading     string
	ChunkIndex  int
	TotalChunks int
	ChunkID     string
	Score       float64
}

// Embedder is the slice of the embedding client the retriever needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string, intent embedding.Intent) ([][]float32, error)
}

// Option configures a single Retrieve call.
type Option func(*searchParams)

type searchParams struct {
	topK   int
	filter map[string]string
}

// WithTopK overrides the number of results requested.
func WithTopK(k int) Option {
	return func(p *searchParams) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithModule restricts results to chunks from the given module.
func WithModule(module string) Option {
	return func(p *searchParams) {
		if module != "" {
			p.filter = map[string]string{"module": module}
		}
	}
}

// Retriever embeds queries and searches the index.
// Retriever is safe for concurrent use.
type Retriever struct {
	embedder Embedder
	index    vectorstore.Index
	topK     int
	minScore float64
	logger   *slog.Logger
}

// New creates a Retriever. topK and minScore of zero select defaults.
func New(embedder Embedder, index vectorstore.Index, topK int, minScore float64, logger *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if topK < 0 {
		return nil, fmt.Errorf("topK must not be negative, got %d", topK)
	}
	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("minScore must be in [0, 1], got %g", minScore)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}, nil
}

// Retrieve returns validated evidence for the query, best score first with
// ties broken by chunk order. Returns ErrNoEvidence when the search ran but
// nothing survived validation.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...Option) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}

	params := searchParams{topK: r.topK}
	for _, opt := range opts {
		opt(&params)
	}

	vectors, err := r.embedder.Embed(ctx, []string{query}, embedding.IntentQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	hits, err := r.index.Search(ctx, vectors[0], params.topK, params.filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	dropped := 0
	for _, hit := range hits {
		if reason := validate(hit, r.minScore); reason != "" {
			dropped++
			r.logger.Debug("dropped hit", "chunk_id", hit.Payload.ChunkID, "reason", reason)
			continue
		}
		p := hit.Payload
		results = append(results, Result{
			Text:        p.Text,
			URL:         p.URL,
			Title:       p.Title,
			Module:      p.Module,
			Heading:     p.Heading,
			ChunkIndex:  p.ChunkIndex,
			TotalChunks: p.TotalChunks,
			ChunkID:     p.ChunkID,
			Score:       hit.Score,
		})
	}

	if dropped > 0 {
		r.logger.Info("filtered search results", "kept", len(results), "dropped", dropped)
	}
	if len(results) == 0 {
		return nil, ErrNoEvidence
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	return results, nil
}

// markupArtifacts are fragments that indicate HTML leaked through extraction.
var markupArtifacts = []string{
	"<", ">", "&lt;", "&gt;", "class=", "id=", "href=", "src=",
}

// uiArtifacts are navigation strings that indicate chrome leaked through.
var uiArtifacts = []string{
	"Next »", "« Previous", "Edit this page", "Table of Contents", "Skip to content",
}

// validate returns an empty string for a clean hit, or the reason it must
// be dropped.
func validate(hit vectorstore.Hit, minScore float64) string {
	p := hit.Payload
	switch {
	case strings.TrimSpace(p.Text) == "":
		return "missing text"
	case p.URL == "":
		return "missing url"
	case p.Title == "":
		return "missing title"
	case p.ChunkID == "":
		return "missing chunk_id"
	}

	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "malformed url"
	}

	for _, artifact := range markupArtifacts {
		if strings.Contains(p.Text, artifact) {
			return "markup artifact"
		}
	}
	for _, artifact := range uiArtifacts {
		if strings.Contains(p.Text, artifact) {
			return "navigation artifact"
		}
	}
	if strings.Contains(p.Text, "   ") || strings.Contains(p.Text, "\n\n\n") {
		return "excessive whitespace"
	}

	if hit.Score < minScore {
		return "below relevance floor"
	}
	return ""
}
