// Package embedding converts text into fixed-dimension vectors via the
// Cohere embed API.
//
// The client batches inputs up to the provider limit, rate-limits outbound
// requests, and retries transient failures (timeouts, 429, 5xx) with bounded
// exponential backoff. The embedding intent — document at ingest time, query
// at retrieval time — is enforced here at the call boundary: the two map to
// different provider modes and mixing them silently degrades retrieval.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Intent selects the provider embedding mode.
type Intent string

const (
	// IntentDocument embeds corpus text at ingest time.
	IntentDocument Intent = "search_document"
	// IntentQuery embeds user queries at retrieval time.
	IntentQuery Intent = "search_query"
)

const (
	defaultBaseURL = "https://api.cohere.ai"

	// maxBatchSize is Cohere's embed batch limit.
	maxBatchSize = 96

	defaultMaxRetries      = 3
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
)

// ErrServiceUnavailable indicates the embedding service kept failing after
// the retry budget was exhausted.
var ErrServiceUnavailable = errors.New("embedding service unavailable")

// ErrEmptyInput indicates Embed was called without any text.
var ErrEmptyInput = errors.New("no texts to embed")

// BatchError reports which slice of the input failed.
// It wraps the underlying cause, so errors.Is(err, ErrServiceUnavailable)
// still works after the batch position is attached.
type BatchError struct {
	Start int // index of the first text in the failed batch
	Count int // number of texts in the failed batch
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding batch [%d:%d): %v", e.Start, e.Start+e.Count, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Config holds embedding client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests; default api.cohere.ai

	// Retry policy; zero values select defaults.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Limiter throttles outbound requests. Nil selects a default of
	// 5 req/s with burst 10.
	Limiter *rate.Limiter

	// HTTPClient overrides the transport; nil selects a 30s-timeout client.
	HTTPClient *http.Client
}

// Client is an order-preserving, batched embedding client.
// Client is safe for concurrent use.
type Client struct {
	apiKey          string
	model           string
	baseURL         string
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	limiter         *rate.Limiter
	http            *http.Client
	logger          *slog.Logger
}

// New creates an embedding Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	initial := cfg.InitialInterval
	if initial == 0 {
		initial = defaultInitialInterval
	}
	maxInterval := cfg.MaxInterval
	if maxInterval == 0 {
		maxInterval = defaultMaxInterval
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 10)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		apiKey:          cfg.APIKey,
		model:           cfg.Model,
		baseURL:         baseURL,
		maxRetries:      maxRetries,
		initialInterval: initial,
		maxInterval:     maxInterval,
		limiter:         limiter,
		http:            httpClient,
		logger:          logger,
	}, nil
}

// Model returns the configured model name. Ingest and query must agree on it.
func (c *Client) Model() string { return c.model }

// Embed converts texts to vectors, one per input, order preserved.
// A failed batch aborts the call with a *BatchError naming the failed range;
// earlier batches are not returned partially.
func (c *Client) Embed(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	if intent != IntentDocument && intent != IntentQuery {
		return nil, fmt.Errorf("unknown embedding intent %q", intent)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		batch := texts[start:end]

		vs, err := c.embedBatch(ctx, batch, intent)
		if err != nil {
			return nil, &BatchError{Start: start, Count: len(batch), Err: err}
		}
		vectors = append(vectors, vs...)

		c.logger.Debug("embedded batch",
			"start", start, "size", len(batch), "intent", string(intent))
	}

	return vectors, nil
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// embedBatch issues one provider call with bounded exponential backoff.
func (c *Client) embedBatch(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	var lastErr error
	delay := c.initialInterval

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		vs, err := c.doRequest(ctx, texts, intent)
		if err == nil {
			return vs, nil
		}
		lastErr = err

		if !transient(err) {
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}

		c.logger.Debug("retrying embed batch",
			"attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.maxInterval)
		}
	}

	return nil, fmt.Errorf("%w: after %d retries: %v", ErrServiceUnavailable, c.maxRetries, lastErr)
}

// statusError carries the HTTP status for transience classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("embed request failed: status %d: %s", e.status, e.body)
}

func (c *Client) doRequest(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	payload, err := json.Marshal(embedRequest{
		Texts:     texts,
		Model:     c.model,
		InputType: string(intent),
		Truncate:  "END",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<24))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode, body: truncate(string(body), 200)}
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts",
			len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// transient reports whether an error is worth retrying.
func transient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.status == http.StatusTooManyRequests:
			return true
		case se.status == http.StatusRequestTimeout:
			return true
		case se.status >= 500:
			return true
		}
		return false
	}
	// Network-level failures (connection reset, timeouts) arrive as wrapped
	// url.Error values; treat them all as transient except cancellation.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
