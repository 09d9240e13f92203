// Package vectorstore defines the storage contract for embedded chunks and
// the record types shared by its backends.
//
// Two interchangeable backends implement Index: a Qdrant REST client and a
// PostgreSQL+pgvector store. Both use cosine similarity and deterministic
// record IDs, so re-ingesting the same corpus overwrites in place instead of
// accumulating duplicates.
package vectorstore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch indicates a vector whose length does not match the
// collection dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Payload is the metadata stored alongside each vector. Every field is
// required at write time; retrieval-side validation rejects hits that come
// back without them.
type Payload struct {
	Text        string `json:"text"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Module      string `json:"module"`
	Heading     string `json:"heading_hierarchy"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	ChunkID     string `json:"chunk_id"`
}

// Record is one embedded chunk ready for storage.
type Record struct {
	// ID identifies the record, normally the chunk ID. Backends derive
	// their native key from it deterministically, so the same chunk
	// always lands on the same point.
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a search result with its cosine similarity score in [0, 1].
type Hit struct {
	Score   float64
	Payload Payload
}

// Index stores and searches embedded chunks.
type Index interface {
	// EnsureCollection creates the collection with the given vector
	// dimension if it does not already exist.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to topK nearest records by cosine similarity,
	// best first. A non-empty filter restricts hits to records whose
	// payload matches every key/value pair exactly.
	Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]Hit, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
