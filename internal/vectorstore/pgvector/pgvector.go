// Package pgvector implements vectorstore.Index on PostgreSQL with the
// pgvector extension. The schema is created by embedded migrations.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore"
)

// VectorDimension is the embedding width the chunks table is migrated with.
const VectorDimension = 1024

const upsertChunkSQL = `INSERT INTO chunks (id, embedding, payload)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload, updated_at = now()`

// searchSQL converts cosine distance to similarity so scores land in [0, 1]
// like the Qdrant backend's.
const searchSQL = `SELECT payload, 1 - (embedding <=> $1) AS score
	FROM chunks
	ORDER BY embedding <=> $1
	LIMIT $2`

const searchFilteredSQL = `SELECT payload, 1 - (embedding <=> $1) AS score
	FROM chunks
	WHERE payload @> $3
	ORDER BY embedding <=> $1
	LIMIT $2`

// Store implements vectorstore.Index on PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool      *pgxpool.Pool
	connURL   string
	dimension int
	logger    *slog.Logger
}

// New creates a pgvector-backed store. connURL is reused by
// EnsureCollection to run migrations.
func New(pool *pgxpool.Pool, connURL string, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if connURL == "" {
		return nil, fmt.Errorf("connection URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, connURL: connURL, logger: logger}, nil
}

// EnsureCollection applies pending migrations. The chunks table is created
// at VectorDimension; any other requested dimension is rejected up front
// rather than failing on the first insert.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension != VectorDimension {
		return fmt.Errorf("chunks table is migrated at %d dimensions, got %d: %w",
			VectorDimension, dimension, vectorstore.ErrDimensionMismatch)
	}
	s.dimension = dimension

	if err := Migrate(s.connURL); err != nil {
		return fmt.Errorf("migrating chunks schema: %w", err)
	}
	return nil
}

// Upsert writes records in a single batch, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		if s.dimension > 0 && len(r.Vector) != s.dimension {
			return fmt.Errorf("record %q has %d dimensions, table has %d: %w",
				r.ID, len(r.Vector), s.dimension, vectorstore.ErrDimensionMismatch)
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for %q: %w", r.ID, err)
		}
		batch.Queue(upsertChunkSQL, r.ID, pgvec.NewVector(r.Vector), payload)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting chunk %q: %w", records[i].ID, err)
		}
	}

	s.logger.Debug("upserted chunks", "count", len(records))
	return nil
}

// Search returns the topK most similar chunks, best first. A non-empty
// filter is matched with jsonb containment against the payload.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, table has %d: %w",
			len(vector), s.dimension, vectorstore.ErrDimensionMismatch)
	}

	var rows pgx.Rows
	var err error
	if len(filter) > 0 {
		match, merr := json.Marshal(filter)
		if merr != nil {
			return nil, fmt.Errorf("encoding filter: %w", merr)
		}
		rows, err = s.pool.Query(ctx, searchFilteredSQL, pgvec.NewVector(vector), topK, match)
	} else {
		rows, err = s.pool.Query(ctx, searchSQL, pgvec.NewVector(vector), topK)
	}
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var hits []vectorstore.Hit
	for rows.Next() {
		var raw []byte
		var score float64
		if err := rows.Scan(&raw, &score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		var payload vectorstore.Payload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		hits = append(hits, vectorstore.Hit{Score: score, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}
