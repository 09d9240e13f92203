package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/log"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		APIKey:          "test-key",
		Model:           "embed-english-v3.0",
		BaseURL:         baseURL,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Limiter:         rate.NewLimiter(rate.Inf, 1),
	}, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// embedServer returns one canned vector per requested text.
func embedServer(t *testing.T, requests *atomic.Int64, failFirst int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)

		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Model != "embed-english-v3.0" {
			t.Errorf("model = %q", req.Model)
		}
		if req.InputType != "search_document" && req.InputType != "search_query" {
			t.Errorf("input_type = %q", req.InputType)
		}

		if n <= int64(failFirst) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		embeddings := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			embeddings[i] = []float32{float32(i), 0.5}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
}

func TestEmbed(t *testing.T) {
	var requests atomic.Int64
	srv := embedServer(t, &requests, 0)
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	vectors, err := c.Embed(context.Background(), []string{"alpha", "beta", "gamma"}, IntentDocument)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	// Order must follow the input order.
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vector %d has position marker %v", i, v[0])
		}
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestEmbedRetriesTransientFailure(t *testing.T) {
	var requests atomic.Int64
	srv := embedServer(t, &requests, 2) // two 503s, then success
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	vectors, err := c.Embed(context.Background(), []string{"alpha"}, IntentQuery)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server saw %d requests, want 3 (two failures then success)", got)
	}
}

func TestEmbedExhaustsRetries(t *testing.T) {
	var requests atomic.Int64
	srv := embedServer(t, &requests, 100) // always fails
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Embed(context.Background(), []string{"alpha"}, IntentDocument)
	if err == nil {
		t.Fatal("Embed() expected error")
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("error = %v, want ErrServiceUnavailable", err)
	}
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want *BatchError", err)
	}
	if be.Start != 0 || be.Count != 1 {
		t.Errorf("BatchError range = [%d, %d), want [0, 1)", be.Start, be.Start+be.Count)
	}
	// initial attempt + maxRetries
	if got := requests.Load(); got != 4 {
		t.Errorf("server saw %d requests, want 4", got)
	}
}

func TestEmbedDoesNotRetryClientError(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	_, err := c.Embed(context.Background(), []string{"alpha"}, IntentDocument)
	if err == nil {
		t.Fatal("Embed() expected error")
	}
	if errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("400 should not be classified as transient: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

func TestEmbedBatching(t *testing.T) {
	var requests atomic.Int64
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		batchSizes = append(batchSizes, len(req.Texts))
		embeddings := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			embeddings[i] = []float32{0.1}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	texts := make([]string, 200)
	for i := range texts {
		texts[i] = "text"
	}
	vectors, err := c.Embed(context.Background(), texts, IntentDocument)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 200 {
		t.Fatalf("got %d vectors, want 200", len(vectors))
	}
	want := []int{96, 96, 8}
	if len(batchSizes) != len(want) {
		t.Fatalf("batch sizes = %v, want %v", batchSizes, want)
	}
	for i := range want {
		if batchSizes[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, batchSizes[i], want[i])
		}
	}
}

func TestEmbedValidation(t *testing.T) {
	c := newTestClient(t, "http://localhost:0")

	if _, err := c.Embed(context.Background(), nil, IntentDocument); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Embed(nil) error = %v, want ErrEmptyInput", err)
	}
	if _, err := c.Embed(context.Background(), []string{"x"}, Intent("bogus")); err == nil {
		t.Error("Embed with unknown intent expected error")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Model: "m"}, log.NewNop()); err == nil {
		t.Error("New without API key expected error")
	}
	if _, err := New(Config{APIKey: "k"}, log.NewNop()); err == nil {
		t.Error("New without model expected error")
	}
}
