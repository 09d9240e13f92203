// Package crawler fetches documentation pages and strips them down to plain
// text with structural hints for chunking.
//
// The crawler targets Docusaurus-style sites: it visits a fixed set of doc
// paths under a base URL, extracts the main content element while discarding
// navigation, sidebars, and footer chrome, and renders headings as #-prefixed
// lines so the chunker can split on them. Pages where no content container
// matches fall back to readability extraction.
package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
)

// userAgent identifies the crawler to the target site.
const userAgent = "rag-pipeline-crawler/1.0 (educational purpose)"

// Document is a fetched page reduced to plain text.
// Documents are immutable; re-fetching a page produces a new Document with
// the same ID (the ID is derived from the URL alone).
type Document struct {
	ID      string // stable 8-hex digest of the URL
	URL     string
	Title   string
	Content string // plain text, headings as "# ..." lines
	Module  string // "module-NN" tag derived from the URL path, or ""
}

// contentSelectors is the chain of Docusaurus main-content selectors, tried
// in order.
var contentSelectors = []string{
	"article",
	"main",
	".markdown",
	`[class*="docMainContainer"]`,
	`[class*="docItemContainer"]`,
}

// chromeSelectors matches page elements that are never content.
const chromeSelectors = "nav, aside, footer, header, script, style, noscript, " +
	".breadcrumbs, .pagination-nav, .theme-doc-toc-desktop, .theme-doc-toc-mobile, " +
	".theme-edit-this-page, .theme-last-updated"

var moduleRe = regexp.MustCompile(`module-\d+`)

// Config holds crawler settings.
type Config struct {
	BaseURL string
	Paths   []string
	Delay   time.Duration // per-request delay, default 500ms
}

// Crawler fetches documentation pages over HTTP.
type Crawler struct {
	baseURL   string
	paths     []string
	collector *colly.Collector
	logger    *slog.Logger
}

// New creates a Crawler for the given site.
func New(cfg Config, logger *slog.Logger) (*Crawler, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	delay := cfg.Delay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}

	// Revisits are allowed so a later crawl of the same site re-fetches
	// updated pages instead of hitting the visited-URL cache.
	c := colly.NewCollector(colly.UserAgent(userAgent), colly.AllowURLRevisit())
	c.SetRequestTimeout(30 * time.Second)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: delay}); err != nil {
		return nil, fmt.Errorf("configuring rate limit: %w", err)
	}

	return &Crawler{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		paths:     cfg.Paths,
		collector: c,
		logger:    logger,
	}, nil
}

// FetchAll visits every configured path and returns the extracted documents.
// Pages that fail to fetch or contain no extractable text are skipped and
// logged; only a canceled context aborts the batch.
func (c *Crawler) FetchAll(ctx context.Context) ([]Document, error) {
	// A clone shares the collector settings and rate limits but carries no
	// callbacks, so repeated FetchAll calls never stack handlers.
	collector := c.collector.Clone()

	docs := make([]Document, 0, len(c.paths))

	var fetchErr error
	collector.OnResponse(func(r *colly.Response) {
		pageURL := r.Request.URL.String()
		doc, err := ExtractDocument(pageURL, r.Body)
		if err != nil {
			c.logger.Warn("skipping page", "url", pageURL, "error", err)
			return
		}
		docs = append(docs, doc)
		c.logger.Debug("fetched page", "url", pageURL, "title", doc.Title,
			"content_length", len(doc.Content))
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		c.logger.Warn("fetch failed", "url", r.Request.URL.String(),
			"status", r.StatusCode, "error", err)
	})

	for _, p := range c.paths {
		if err := ctx.Err(); err != nil {
			return docs, fmt.Errorf("crawl aborted: %w", err)
		}
		fetchErr = nil
		target := c.baseURL + p
		if err := collector.Visit(target); err != nil {
			c.logger.Warn("skipping page", "url", target, "error", err)
			continue
		}
		collector.Wait()
		_ = fetchErr // already logged by OnError; page simply skipped
	}

	c.logger.Info("crawl complete", "pages", len(c.paths), "documents", len(docs))
	return docs, nil
}

// ExtractDocument parses raw page HTML into a Document.
// It returns an error when the page yields no extractable text.
func ExtractDocument(pageURL string, body []byte) (Document, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parsing HTML: %w", err)
	}

	title := extractTitle(root)
	content := extractContent(root)

	if content == "" {
		// Readability handles pages without recognizable Docusaurus markup.
		content = extractReadable(pageURL, body)
	}
	if strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("no extractable text")
	}

	return Document{
		ID:      DocumentID(pageURL),
		URL:     pageURL,
		Title:   title,
		Content: content,
		Module:  moduleRe.FindString(pageURL),
	}, nil
}

// DocumentID derives the stable document identifier from a URL.
// Eight hex characters of a sha256 digest, so re-fetching the same URL always
// yields the same ID and downstream chunk IDs stay stable.
func DocumentID(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return hex.EncodeToString(sum[:4])
}

func extractTitle(root *goquery.Document) string {
	if h1 := root.Find("h1").First(); h1.Length() > 0 {
		if t := strings.TrimSpace(h1.Text()); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(root.Find("title").First().Text()); t != "" {
		return t
	}
	return "Untitled"
}

func extractContent(root *goquery.Document) string {
	var container *goquery.Selection
	for _, sel := range contentSelectors {
		if s := root.Find(sel).First(); s.Length() > 0 {
			container = s
			break
		}
	}
	if container == nil {
		return ""
	}

	container.Find(chromeSelectors).Remove()

	var b strings.Builder
	container.Find("h1, h2, h3, h4, h5, h6, p, li, pre").Each(func(_ int, s *goquery.Selection) {
		// Skip list items that wrap paragraphs; the paragraphs are
		// visited on their own and would otherwise repeat.
		if goquery.NodeName(s) == "li" && s.Find("p").Length() > 0 {
			return
		}

		text := normalizeSpace(s.Text())
		if text == "" {
			return
		}

		switch node := goquery.NodeName(s); node {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(node[1] - '0')
			b.WriteString(strings.Repeat("#", level))
			b.WriteByte(' ')
			b.WriteString(text)
		default:
			b.WriteString(text)
		}
		b.WriteString("\n\n")
	})

	return strings.TrimSpace(b.String())
}

func extractReadable(pageURL string, body []byte) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	return normalizeText(article.TextContent)
}

// normalizeSpace collapses all runs of whitespace inside a line to single
// spaces. Retrieval validation rejects chunks with excessive whitespace, so
// clean-up happens at the source.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeText cleans multi-line text: trims each line and collapses runs of
// blank lines to one.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = normalizeSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
