// Package chunker splits documents into bounded, overlapping text units for
// embedding and retrieval.
//
// Splitting is heading-first: the document is divided into sections at
// #-prefixed heading lines, each section tagged with its heading hierarchy.
// Sections that exceed the chunk size are windowed by words with a fixed
// overlap so adjacent chunks share context. Chunk identifiers are a pure
// function of (document ID, ordinal), which makes re-ingestion idempotent.
package chunker

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/crawler"
)

// Defaults, in words.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// Chunk is the unit of retrieval.
//
// Invariant: 0 <= Ordinal < Total, and ordinals are contiguous from 0 across
// the chunks of one document.
type Chunk struct {
	ChunkID    string // DocumentID + "_" + Ordinal; deterministic
	DocumentID string
	Ordinal    int
	Total      int
	Text       string
	Heading    string // heading hierarchy "A > B > C", or the document title
	URL        string
	Title      string
	Module     string
}

// Chunker splits documents into chunks.
type Chunker struct {
	size    int // target chunk size in words
	overlap int // words shared between adjacent chunks of one section
	logger  *slog.Logger
}

// New creates a Chunker. size must be positive and overlap must be smaller
// than size; zero values select the defaults.
func New(size, overlap int, logger *slog.Logger) (*Chunker, error) {
	if size == 0 {
		size = DefaultChunkSize
	}
	if overlap == 0 && size == DefaultChunkSize {
		overlap = DefaultChunkOverlap
	}
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("invalid chunking parameters: size=%d overlap=%d", size, overlap)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{size: size, overlap: overlap, logger: logger}, nil
}

// section is a run of text under one heading hierarchy.
type section struct {
	headings []string
	text     string
}

// Chunk splits a document. An empty document yields nil; a document shorter
// than the chunk size yields exactly one chunk.
func (c *Chunker) Chunk(doc crawler.Document) []Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	var chunks []Chunk
	for _, sec := range splitByHeadings(doc.Content) {
		heading := strings.Join(sec.headings, " > ")
		if heading == "" {
			heading = doc.Title
		}
		for _, text := range c.window(sec.text) {
			chunks = append(chunks, Chunk{
				DocumentID: doc.ID,
				Text:       text,
				Heading:    heading,
				URL:        doc.URL,
				Title:      doc.Title,
				Module:     doc.Module,
			})
		}
	}

	// Ordinals are assigned across the whole document, not per section.
	for i := range chunks {
		chunks[i].Ordinal = i
		chunks[i].Total = len(chunks)
		chunks[i].ChunkID = ChunkID(doc.ID, i)
	}

	c.logger.Debug("chunked document", "document_id", doc.ID, "chunks", len(chunks))
	return chunks
}

// ChunkID derives the chunk identifier from the document ID and ordinal.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", documentID, ordinal)
}

// splitByHeadings divides text into sections at heading lines. Each heading
// line starts a new section whose hierarchy is the stack of enclosing
// headings; the heading line itself stays in the section text.
func splitByHeadings(text string) []section {
	var (
		sections []section
		current  []string
		stack    []struct {
			level int
			text  string
		}
		headings []string
	)

	flush := func() {
		body := strings.TrimSpace(strings.Join(current, "\n"))
		if body != "" {
			sections = append(sections, section{headings: headings, text: body})
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		m := headingRe.FindStringSubmatch(line)
		if m == nil {
			current = append(current, line)
			continue
		}

		flush()

		level := len(m[1])
		headingText := strings.TrimSpace(m[2])

		// Pop deeper or equal headings, then push the new one.
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, struct {
			level int
			text  string
		}{level, headingText})

		headings = make([]string, len(stack))
		for i, h := range stack {
			headings[i] = h.text
		}
		current = []string{line}
	}
	flush()

	return sections
}

// window splits section text into overlapping word windows of at most
// c.size words. Text within the size limit is returned as a single piece.
func (c *Chunker) window(text string) []string {
	words := strings.Fields(text)
	if len(words) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var pieces []string
	for start := 0; start < len(words); start += step {
		end := min(start+c.size, len(words))
		pieces = append(pieces, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return pieces
}
