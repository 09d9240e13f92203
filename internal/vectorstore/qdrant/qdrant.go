// Package qdrant implements vectorstore.Index against the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore"
)

// Config holds Qdrant connection settings.
type Config struct {
	URL        string // e.g. http://localhost:6333
	APIKey     string // optional; sent as api-key header when set
	Collection string
	Dimension  int           // vector size of the collection
	Timeout    time.Duration // zero selects 15s
}

// Store is a Qdrant REST client implementing vectorstore.Index.
// Store is safe for concurrent use.
type Store struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	http       *http.Client
	logger     *slog.Logger
}

// New creates a Qdrant-backed store.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", cfg.Dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// PointID maps a record ID to the UUID Qdrant requires. The mapping is
// deterministic so repeated upserts of the same chunk overwrite in place.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

// EnsureCollection creates the collection with cosine distance if missing.
// dimension must match the dimension the store was configured with.
// Qdrant answers 200 for a PUT on an existing collection with the same
// schema, so this is safe to call on every startup.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension != s.dimension {
		return fmt.Errorf("requested dimension %d, store configured for %d: %w",
			dimension, s.dimension, vectorstore.ErrDimensionMismatch)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s", s.collection), body, nil); err != nil {
		return fmt.Errorf("ensuring collection %q: %w", s.collection, err)
	}

	s.logger.Debug("collection ready", "collection", s.collection, "dimension", dimension)
	return nil
}

type point struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload vectorstore.Payload `json:"payload"`
}

// Upsert writes records with wait=true so a following Search sees them.
func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]point, len(records))
	for i, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("record %q has %d dimensions, collection has %d: %w",
				r.ID, len(r.Vector), s.dimension, vectorstore.ErrDimensionMismatch)
		}
		points[i] = point{
			ID:      PointID(r.ID),
			Vector:  r.Vector,
			Payload: r.Payload,
		}
	}

	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", s.collection), body, nil); err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the topK nearest points, best first.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, collection has %d: %w",
			len(vector), s.dimension, vectorstore.ErrDimensionMismatch)
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var resp struct {
		Result []struct {
			Score   float64             `json:"score"`
			Payload vectorstore.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", s.collection), req, &resp); err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", s.collection, err)
	}

	hits := make([]vectorstore.Hit, len(resp.Result))
	for i, r := range resp.Result {
		hits[i] = vectorstore.Hit{Score: r.Score, Payload: r.Payload}
	}
	return hits, nil
}

// Count returns the exact number of stored points.
func (s *Store) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/count", s.collection),
		map[string]any{"exact": true}, &resp); err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return resp.Result.Count, nil
}

// do issues one JSON request and decodes the response into out when non-nil.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<26))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant returned status %d: %s", resp.StatusCode, snippet(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func snippet(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
