package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/embedding"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/log"
	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/vectorstore"
)

type mockEmbedder struct {
	lastIntent embedding.Intent
	err        error
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string, intent embedding.Intent) ([][]float32, error) {
	m.lastIntent = intent
	if m.err != nil {
		return nil, m.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2}
	}
	return vectors, nil
}

type mockIndex struct {
	hits       []vectorstore.Hit
	err        error
	lastTopK   int
	lastFilter map[string]string
}

func (m *mockIndex) EnsureCollection(context.Context, int) error          { return nil }
func (m *mockIndex) Upsert(context.Context, []vectorstore.Record) error  { return nil }
func (m *mockIndex) Count(context.Context) (int, error)                  { return len(m.hits), nil }
func (m *mockIndex) Search(_ context.Context, _ []float32, topK int, filter map[string]string) ([]vectorstore.Hit, error) {
	m.lastTopK = topK
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func goodHit(chunkID string, score float64) vectorstore.Hit {
	return vectorstore.Hit{
		Score: score,
		Payload: vectorstore.Payload{
			Text:        "ROS 2 nodes exchange messages over typed topics.",
			URL:         "https://example.com/docs/module-01",
			Title:       "ROS 2 Basics",
			Module:      "module-01",
			Heading:     "ROS 2 Basics > Topics",
			ChunkIndex:  0,
			TotalChunks: 3,
			ChunkID:     chunkID,
		},
	}
}

func newRetriever(t *testing.T, emb Embedder, idx vectorstore.Index) *Retriever {
	t.Helper()
	r, err := New(emb, idx, 0, 0, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRetrieve(t *testing.T) {
	emb := &mockEmbedder{}
	idx := &mockIndex{hits: []vectorstore.Hit{goodHit("a_0", 0.9), goodHit("a_1", 0.8)}}
	r := newRetriever(t, emb, idx)

	results, err := r.Retrieve(context.Background(), "how do topics work?")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if emb.lastIntent != embedding.IntentQuery {
		t.Errorf("query embedded with intent %q, want %q", emb.lastIntent, embedding.IntentQuery)
	}
	if idx.lastTopK != DefaultTopK {
		t.Errorf("searched with topK=%d, want %d", idx.lastTopK, DefaultTopK)
	}
	if results[0].Score != 0.9 || results[0].ChunkID != "a_0" {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestRetrieveOptions(t *testing.T) {
	idx := &mockIndex{hits: []vectorstore.Hit{goodHit("a_0", 0.9)}}
	r := newRetriever(t, &mockEmbedder{}, idx)

	_, err := r.Retrieve(context.Background(), "cameras",
		WithTopK(3), WithModule("module-02"))
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if idx.lastTopK != 3 {
		t.Errorf("topK = %d, want 3", idx.lastTopK)
	}
	if idx.lastFilter["module"] != "module-02" {
		t.Errorf("filter = %v", idx.lastFilter)
	}
}

func TestRetrieveDropsInvalidHits(t *testing.T) {
	markup := goodHit("b_0", 0.95)
	markup.Payload.Text = `<div class="content">leaked markup</div>`

	nav := goodHit("b_1", 0.94)
	nav.Payload.Text = "Intro text. Next » more"

	noURL := goodHit("b_2", 0.93)
	noURL.Payload.URL = ""

	badURL := goodHit("b_3", 0.92)
	badURL.Payload.URL = "ftp://example.com/docs"

	whitespace := goodHit("b_4", 0.91)
	whitespace.Payload.Text = "too\n\n\nmany blank lines"

	idx := &mockIndex{hits: []vectorstore.Hit{
		markup, nav, noURL, badURL, whitespace, goodHit("b_5", 0.85),
	}}
	r := newRetriever(t, &mockEmbedder{}, idx)

	results, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "b_5" {
		t.Errorf("results = %+v, want only the clean hit", results)
	}
}

func TestRetrieveScoreFloor(t *testing.T) {
	idx := &mockIndex{hits: []vectorstore.Hit{
		goodHit("c_0", 0.61),
		goodHit("c_1", 0.59), // just under the floor
	}}
	r := newRetriever(t, &mockEmbedder{}, idx)

	results, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "c_0" {
		t.Errorf("results = %+v, want only the above-floor hit", results)
	}
}

func TestRetrieveOrdering(t *testing.T) {
	tied := goodHit("d_2", 0.8)
	tied.Payload.ChunkIndex = 2
	first := goodHit("d_1", 0.8)
	first.Payload.ChunkIndex = 1
	best := goodHit("d_0", 0.9)

	idx := &mockIndex{hits: []vectorstore.Hit{tied, first, best}}
	r := newRetriever(t, &mockEmbedder{}, idx)

	results, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	got := []string{results[0].ChunkID, results[1].ChunkID, results[2].ChunkID}
	want := []string{"d_0", "d_1", "d_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRetrieveNoEvidence(t *testing.T) {
	r := newRetriever(t, &mockEmbedder{}, &mockIndex{})

	_, err := r.Retrieve(context.Background(), "anything")
	if !errors.Is(err, ErrNoEvidence) {
		t.Errorf("Retrieve() error = %v, want ErrNoEvidence", err)
	}

	// All hits below the floor is the same outcome.
	r = newRetriever(t, &mockEmbedder{}, &mockIndex{hits: []vectorstore.Hit{goodHit("e_0", 0.2)}})
	_, err = r.Retrieve(context.Background(), "anything")
	if !errors.Is(err, ErrNoEvidence) {
		t.Errorf("Retrieve() error = %v, want ErrNoEvidence", err)
	}
}

func TestRetrieveErrors(t *testing.T) {
	r := newRetriever(t, &mockEmbedder{}, &mockIndex{})
	if _, err := r.Retrieve(context.Background(), "   "); err == nil {
		t.Error("blank query expected error")
	}

	embErr := errors.New("embedder down")
	r = newRetriever(t, &mockEmbedder{err: embErr}, &mockIndex{})
	if _, err := r.Retrieve(context.Background(), "q"); !errors.Is(err, embErr) {
		t.Errorf("error = %v, want wrapped embedder error", err)
	}

	idxErr := errors.New("index down")
	r = newRetriever(t, &mockEmbedder{}, &mockIndex{err: idxErr})
	if _, err := r.Retrieve(context.Background(), "q"); !errors.Is(err, idxErr) {
		t.Errorf("error = %v, want wrapped index error", err)
	}
}

func TestNewValidation(t *testing.T) {
	emb := &mockEmbedder{}
	idx := &mockIndex{}

	if _, err := New(nil, idx, 0, 0, log.NewNop()); err == nil {
		t.Error("New without embedder expected error")
	}
	if _, err := New(emb, nil, 0, 0, log.NewNop()); err == nil {
		t.Error("New without index expected error")
	}
	if _, err := New(emb, idx, -1, 0, log.NewNop()); err == nil {
		t.Error("New with negative topK expected error")
	}
	if _, err := New(emb, idx, 0, 1.5, log.NewNop()); err == nil {
		t.Error("New with minScore > 1 expected error")
	}
}
