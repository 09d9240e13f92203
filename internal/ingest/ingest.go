// Package ingest wires the pipeline that turns live documentation pages
// into searchable vectors: fetch, chunk, embed, upsert.
//
// Documents are processed concurrently with a bounded fan-out. A failing
// document is logged and skipped so one broken page cannot sink a run;
// within a document, chunk order is preserved end to end so chunk ordinals
// stay aligned with their embeddings.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/chunker"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/crawler"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/embedding"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore"
)

// defaultConcurrency bounds how many documents are processed at once.
// The embedder's rate limiter is the real throttle; this just keeps
// memory bounded.
const defaultConcurrency = 4

// Fetcher produces the documents to index.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]crawler.Document, error)
}

// Chunker splits a document into ordered chunks.
type Chunker interface {
	Chunk(doc crawler.Document) []chunker.Chunk
}

// Embedder converts texts to vectors, order preserved.
type Embedder interface {
	Embed(ctx context.Context, texts []string, intent embedding.Intent) ([][]float32, error)
}

// Stats summarizes one ingestion run.
type Stats struct {
	// Documents that were chunked, embedded, and stored.
	Documents int
	// Chunks written across all documents.
	Chunks int
	// Skipped documents that failed somewhere in the pipeline.
	Skipped int
	// Indexed is the total record count reported by the store afterwards.
	Indexed int
}

// Pipeline runs the full ingestion flow.
type Pipeline struct {
	fetcher     Fetcher
	chunker     Chunker
	embedder    Embedder
	index       vectorstore.Index
	dimension   int
	concurrency int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency overrides the document fan-out width.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates an ingestion Pipeline.
func New(fetcher Fetcher, ch Chunker, embedder Embedder, index vectorstore.Index, dimension int, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if ch == nil {
		return nil, fmt.Errorf("chunker is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		fetcher:     fetcher,
		chunker:     ch,
		embedder:    embedder,
		index:       index,
		dimension:   dimension,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one full ingestion pass. Re-running over the same corpus
// overwrites records in place; it never duplicates them.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	if err := p.index.EnsureCollection(ctx, p.dimension); err != nil {
		return nil, fmt.Errorf("preparing index: %w", err)
	}

	docs, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents fetched")
	}
	p.logger.Info("fetched documents", "count", len(docs))

	type outcome struct {
		chunks  int
		skipped bool
	}
	outcomes := make([]outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := p.processDocument(gctx, doc)
			if err != nil {
				// Skip the document, keep the run going. Cancellation is
				// the exception: it must stop the whole group.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("skipping document", "url", doc.URL, "error", err)
				outcomes[i] = outcome{skipped: true}
				return nil
			}
			outcomes[i] = outcome{chunks: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingesting documents: %w", err)
	}

	stats := &Stats{}
	for _, o := range outcomes {
		if o.skipped {
			stats.Skipped++
			continue
		}
		stats.Documents++
		stats.Chunks += o.chunks
	}

	if n, err := p.index.Count(ctx); err == nil {
		stats.Indexed = n
	} else {
		p.logger.Warn("counting indexed records failed", "error", err)
	}

	p.logger.Info("ingestion complete",
		"documents", stats.Documents, "chunks", stats.Chunks, "skipped", stats.Skipped)
	return stats, nil
}

// processDocument chunks, embeds, and stores one document, returning the
// number of chunks written.
func (p *Pipeline) processDocument(ctx context.Context, doc crawler.Document) (int, error) {
	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts, embedding.IntentDocument)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			ID:     c.ChunkID,
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				Text:        c.Text,
				URL:         c.URL,
				Title:       c.Title,
				Module:      c.Module,
				Heading:     c.Heading,
				ChunkIndex:  c.Ordinal,
				TotalChunks: c.Total,
				ChunkID:     c.ChunkID,
			},
		}
	}
	if err := p.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("storing: %w", err)
	}
	return len(records), nil
}
