// Package app assembles the application from configuration: embedding
// client, vector store backend, retriever, sessions, and the agent.
//
// Commands call Setup once and take the pieces they need; Close releases
// whatever the chosen backend holds open.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/agent"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/chunker"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/config"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/crawler"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/embedding"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/ingest"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/log"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/retriever"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/session"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore/pgvector"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore/qdrant"
)

// App holds the assembled components.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Embedder  *embedding.Client
	Index     vectorstore.Index
	Retriever *retriever.Retriever
	Sessions  *session.Store

	pool *pgxpool.Pool
}

// Setup builds the application for the configured vector backend.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	embedder, err := embedding.New(embedding.Config{
		APIKey: cfg.CohereAPIKey,
		Model:  cfg.EmbeddingModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Embedder: embedder,
		Sessions: session.NewStore(),
	}

	switch cfg.VectorBackend {
	case config.BackendQdrant:
		a.Index, err = qdrant.New(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.Collection,
			Dimension:  cfg.EmbeddingDimension,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant store: %w", err)
		}
	case config.BackendPgvector:
		poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		a.pool, err = pgxpool.New(poolCtx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.Index, err = pgvector.New(a.pool, cfg.PostgresURL, logger)
		if err != nil {
			a.pool.Close()
			return nil, fmt.Errorf("creating pgvector store: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.VectorBackend)
	}

	a.Retriever, err = retriever.New(embedder, a.Index, cfg.TopK, cfg.MinScore, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating retriever: %w", err)
	}
	return a, nil
}

// Orchestrator builds the question-answering agent. It needs the Gemini
// key, which ingestion-only runs do not.
func (a *App) Orchestrator(ctx context.Context) (*agent.Orchestrator, error) {
	if err := a.Config.ValidateModel(); err != nil {
		return nil, err
	}

	model, err := agent.NewGemini(ctx, agent.GeminiConfig{
		APIKey:      a.Config.GeminiAPIKey,
		Model:       a.Config.ModelName,
		Temperature: float64(a.Config.Temperature),
		MaxTokens:   a.Config.MaxTokens,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	registry, err := agent.NewRegistry(agent.NewRetrieveTool(a.Retriever))
	if err != nil {
		return nil, fmt.Errorf("creating tool registry: %w", err)
	}

	return agent.New(model, registry, a.Sessions, a.Config.MaxToolCalls, a.Logger)
}

// Pipeline builds the ingestion pipeline.
func (a *App) Pipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	fetcher, err := crawler.New(crawler.Config{
		BaseURL: a.Config.WebsiteBaseURL,
		Paths:   a.Config.DocsPaths,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating crawler: %w", err)
	}

	ch, err := chunker.New(a.Config.ChunkSize, a.Config.ChunkOverlap, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	return ingest.New(fetcher, ch, a.Embedder, a.Index, a.Config.EmbeddingDimension, a.Logger, opts...)
}

// Close releases backend resources.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
