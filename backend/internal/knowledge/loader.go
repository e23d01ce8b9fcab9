package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"contextpilot/backend/pkg/logger"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// minSnippetLength drops menu items, captions and other short fragments
	minSnippetLength = 20
	maxPageBytes     = 512 * 1024
)

// Indexer receives snippets; *vector.Index satisfies it
type Indexer interface {
	AddText(ctx context.Context, text string) error
}

// Loader feeds text snippets from various sources into an Indexer
type Loader struct {
	index      Indexer
	httpClient *http.Client
	logger     *zap.Logger
}

// NewLoader creates a new knowledge loader
func NewLoader(index Indexer) *Loader {
	return &Loader{
		index:      index,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.Named("knowledge"),
	}
}

// LoadTexts indexes each non-blank text and returns how many were added.
// It stops at the first indexing error.
func (l *Loader) LoadTexts(ctx context.Context, texts []string) (int, error) {
	added := 0
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if err := l.index.AddText(ctx, text); err != nil {
			return added, fmt.Errorf("failed to index snippet %d: %w", added+1, err)
		}
		added++
	}
	return added, nil
}

// LoadFile indexes one snippet per blank-line separated paragraph
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	added, err := l.LoadTexts(ctx, SplitParagraphs(string(data)))
	l.logger.Info("Knowledge file loaded",
		zap.String("path", path),
		zap.Int("snippets", added),
	)
	return added, err
}

// LoadURL fetches an HTML page and indexes its readable blocks
func (l *Loader) LoadURL(ctx context.Context, url string) (int, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ContextPilot/1.0)")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	snippets, err := ExtractSnippets(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return 0, err
	}

	added, err := l.LoadTexts(ctx, snippets)
	l.logger.Info("Knowledge page loaded",
		zap.String("url", url),
		zap.Int("snippets", added),
	)
	return added, err
}

// ExtractSnippets returns the text of headings, paragraphs and list items,
// skipping scripts, styles and page chrome. Duplicates are dropped.
func ExtractSnippets(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	seen := make(map[string]struct{})
	var snippets []string
	doc.Find("h1, h2, h3, p, li").Each(func(_ int, s *goquery.Selection) {
		text := collapseWhitespace(s.Text())
		if len(text) < minSnippetLength {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		snippets = append(snippets, text)
	})
	return snippets, nil
}

// SplitParagraphs splits text on blank lines, joining wrapped lines
func SplitParagraphs(text string) []string {
	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
