package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/crawler"
)

func testDoc(content string) crawler.Document {
	return crawler.Document{
		ID:      "ab12cd34",
		URL:     "http://localhost:3000/docs/module-01/sensors",
		Title:   "Introduction to Sensors",
		Content: content,
		Module:  "module-01",
	}
}

// words produces n space-separated numbered words.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunkShortDocument(t *testing.T) {
	c, err := New(800, 100, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	doc := testDoc("Physical AI is the study of embodied intelligence in real environments.")
	chunks := c.Chunk(doc)

	if len(chunks) != 1 {
		t.Fatalf("Chunk() returned %d chunks, want 1", len(chunks))
	}
	got := chunks[0]
	if got.Ordinal != 0 || got.Total != 1 {
		t.Errorf("ordinal/total = %d/%d, want 0/1", got.Ordinal, got.Total)
	}
	if got.ChunkID != "ab12cd34_0" {
		t.Errorf("ChunkID = %q, want ab12cd34_0", got.ChunkID)
	}
	if got.Heading != doc.Title {
		t.Errorf("Heading = %q, want document title for headingless text", got.Heading)
	}
	if got.URL != doc.URL || got.Title != doc.Title || got.Module != doc.Module {
		t.Errorf("metadata not propagated: %+v", got)
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	c, _ := New(800, 100, nil)
	if chunks := c.Chunk(testDoc("   \n\n ")); chunks != nil {
		t.Fatalf("Chunk() on empty document = %v, want nil", chunks)
	}
}

func TestChunkHeadingSections(t *testing.T) {
	c, _ := New(800, 100, nil)
	content := strings.Join([]string{
		"# Sensors",
		"Intro paragraph about sensors.",
		"## Cameras",
		"Camera paragraph.",
		"### Depth",
		"Depth camera paragraph.",
		"## Lidar",
		"Lidar paragraph.",
	}, "\n")

	chunks := c.Chunk(testDoc(content))
	if len(chunks) != 4 {
		t.Fatalf("Chunk() returned %d chunks, want 4", len(chunks))
	}

	wantHeadings := []string{
		"Sensors",
		"Sensors > Cameras",
		"Sensors > Cameras > Depth",
		"Sensors > Lidar",
	}
	for i, want := range wantHeadings {
		if chunks[i].Heading != want {
			t.Errorf("chunk %d heading = %q, want %q", i, chunks[i].Heading, want)
		}
	}

	// Ordinals contiguous from 0, total equals count.
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("chunk %d ordinal = %d", i, ch.Ordinal)
		}
		if ch.Total != len(chunks) {
			t.Errorf("chunk %d total = %d, want %d", i, ch.Total, len(chunks))
		}
	}
}

func TestChunkOversizedSection(t *testing.T) {
	c, err := New(100, 20, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	chunks := c.Chunk(testDoc(words(250)))
	// Windows: [0,100) [80,180) [160,250) with step 80.
	if len(chunks) != 3 {
		t.Fatalf("Chunk() returned %d chunks, want 3", len(chunks))
	}

	for i, ch := range chunks {
		n := len(strings.Fields(ch.Text))
		if n > 100 {
			t.Errorf("chunk %d has %d words, exceeds size 100", i, n)
		}
	}

	// Adjacent chunks share the overlap.
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	if first[80] != second[0] {
		t.Errorf("overlap broken: first[80]=%q second[0]=%q", first[80], second[0])
	}

	// No word is lost at the tail.
	last := strings.Fields(chunks[2].Text)
	if last[len(last)-1] != "w249" {
		t.Errorf("last word = %q, want w249", last[len(last)-1])
	}
}

func TestChunkDeterministic(t *testing.T) {
	c, _ := New(100, 20, nil)
	doc := testDoc("# Title\n" + words(500))

	a := c.Chunk(doc)
	b := c.Chunk(doc)

	if !reflect.DeepEqual(a, b) {
		t.Fatal("re-chunking the same document produced different chunks")
	}
	for i := range a {
		if a[i].ChunkID != ChunkID(doc.ID, i) {
			t.Errorf("chunk %d id = %q, want %q", i, a[i].ChunkID, ChunkID(doc.ID, i))
		}
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		wantErr       bool
	}{
		{"defaults", 0, 0, false},
		{"valid", 400, 50, false},
		{"overlap equals size", 100, 100, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 100, -5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%d, %d) error = %v, wantErr %v", tt.size, tt.overlap, err, tt.wantErr)
			}
		})
	}
}
