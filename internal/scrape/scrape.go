// Package scrape pulls full article text from publisher pages for items
// whose feed entry only carried a stub description. Extraction is best
// effort: a page that yields nothing usable is skipped, never fatal.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/news"
)

const (
	// minUsefulChars is the shortest extraction worth keeping.
	minUsefulChars = 100
	// maxContentChars caps stored content; the cap lands on a paragraph
	// boundary so summaries never see a half sentence.
	maxContentChars = 4000
)

// Extractor fetches and cleans article pages.
type Extractor struct {
	cfg    config.EnrichConfig
	client *http.Client
}

// NewExtractor returns an extractor using the given HTTP client. A nil
// client gets a default with a 15 second timeout.
func NewExtractor(cfg config.EnrichConfig, client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Extractor{cfg: cfg, client: client}
}

// Enrich fills in RawContent for articles whose text is shorter than the
// configured minimum, visiting at most MaxArticles pages with a courtesy
// delay between requests. Returns the number of articles enriched.
func (e *Extractor) Enrich(ctx context.Context, articles []*news.Article) int {
	if e.cfg.MaxArticles <= 0 {
		return 0
	}

	enriched := 0
	visited := 0
	for _, a := range articles {
		if visited >= e.cfg.MaxArticles {
			break
		}
		if len(a.Text()) >= e.cfg.MinTextChars {
			continue
		}

		if visited > 0 && e.cfg.DelayMillis > 0 {
			select {
			case <-ctx.Done():
				return enriched
			case <-time.After(time.Duration(e.cfg.DelayMillis) * time.Millisecond):
			}
		}
		visited++

		content, err := e.Extract(ctx, a.URL)
		if err != nil {
			logger.Debug("Content extraction failed", "url", a.URL, "error", err)
			continue
		}
		if len(content) < minUsefulChars {
			logger.Debug("Extracted content too short", "url", a.URL, "chars", len(content))
			continue
		}

		a.RawContent = content
		enriched++
		logger.Debug("Enriched article", "url", a.URL, "chars", len(content))
	}
	return enriched
}

// Extract downloads one page and returns its cleaned body text.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "newsbrief/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	content := cleanContent(extractParagraphs(doc))
	if content == "" {
		return "", fmt.Errorf("no usable content")
	}
	return content, nil
}

// contentSelectors is the cascade tried in order; the first selector that
// yields three paragraphs wins. The bare "p" fallback is last because it
// sweeps up navigation and footer text on busy pages.
var contentSelectors = []string{
	"article p",
	".article-body p",
	".article-content p",
	".story-body p",
	".post-content p",
	".entry-content p",
	"main p",
	"#content p",
	"p",
}

func extractParagraphs(doc *goquery.Document) []string {
	var paragraphs []string
	for _, selector := range contentSelectors {
		paragraphs = paragraphs[:0]
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 3 {
			break
		}
	}
	return paragraphs
}

// junkIndicators mark whole lines of site chrome rather than story text.
var junkIndicators = []string{
	"cookie", "privacy policy", "terms of service", "all rights reserved",
	"sign up for", "subscribe to", "newsletter", "advertisement",
	"read more:", "related:", "click here", "follow us", "share this",
	"watch:", "listen:",
}

func isJunkLine(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// cleanContent joins extracted paragraphs, drops boilerplate lines,
// normalizes whitespace and applies the length cap.
func cleanContent(paragraphs []string) string {
	var kept []string
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if len(p) < 30 || isJunkLine(p) {
			continue
		}
		kept = append(kept, p)
	}

	content := strings.Join(kept, "\n\n")
	if len(content) <= maxContentChars {
		return content
	}

	var selected []string
	total := 0
	for _, p := range kept {
		if total+len(p) > maxContentChars {
			break
		}
		selected = append(selected, p)
		total += len(p) + 2
	}
	return strings.Join(selected, "\n\n")
}
