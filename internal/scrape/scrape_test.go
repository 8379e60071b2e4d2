package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/news"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const articlePage = `<html><body>
<nav><p>Follow us on social media for all the latest updates</p></nav>
<article>
<p>First real paragraph about the story with enough length to pass the filter easily.</p>
<p>Subscribe to our newsletter for daily updates delivered straight to your inbox.</p>
<p>Second real paragraph providing additional detail about what happened today.</p>
<p>Third real paragraph with the remaining background and quotes from officials.</p>
</article>
</body></html>`

func TestExtractSkipsBoilerplate(t *testing.T) {
	srv := serveHTML(t, articlePage)
	e := NewExtractor(config.EnrichConfig{}, srv.Client())

	content, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !strings.Contains(content, "First real paragraph") {
		t.Errorf("content missing first paragraph: %q", content)
	}
	if strings.Contains(content, "Subscribe to our newsletter") {
		t.Errorf("content kept boilerplate: %q", content)
	}
	if strings.Contains(content, "Follow us") {
		t.Errorf("content kept navigation text: %q", content)
	}
	if got := strings.Count(content, "\n\n"); got != 2 {
		t.Errorf("paragraph separators = %d, want 2", got)
	}
}

func TestExtractFallsBackToBareParagraphs(t *testing.T) {
	srv := serveHTML(t, `<html><body>
<div><p>A page without any article container still has readable paragraphs in it.</p>
<p>The extractor should fall through the selector cascade and pick these up.</p></div>
</body></html>`)
	e := NewExtractor(config.EnrichConfig{}, srv.Client())

	content, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(content, "selector cascade") {
		t.Errorf("fallback missed paragraphs: %q", content)
	}
}

func TestExtractHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	e := NewExtractor(config.EnrichConfig{}, srv.Client())

	if _, err := e.Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestExtractCapsContentOnParagraphBoundary(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body><article>")
	for i := 0; i < 40; i++ {
		sb.WriteString("<p>")
		sb.WriteString(strings.Repeat("x", 290))
		sb.WriteString(" sentence ends here.</p>")
	}
	sb.WriteString("</article></body></html>")

	srv := serveHTML(t, sb.String())
	e := NewExtractor(config.EnrichConfig{}, srv.Client())

	content, err := e.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(content) > maxContentChars {
		t.Errorf("content length = %d, want <= %d", len(content), maxContentChars)
	}
	if !strings.HasSuffix(content, "sentence ends here.") {
		t.Errorf("content does not end on a paragraph boundary: %q", content[len(content)-40:])
	}
}

func TestEnrichOnlyStubArticles(t *testing.T) {
	srv := serveHTML(t, articlePage)
	e := NewExtractor(config.EnrichConfig{MinTextChars: 200, MaxArticles: 5}, srv.Client())

	full := &news.Article{
		URL:         srv.URL,
		Description: strings.Repeat("already long enough description ", 10),
	}
	stub := &news.Article{URL: srv.URL, Description: "short stub"}

	got := e.Enrich(context.Background(), []*news.Article{full, stub})
	if got != 1 {
		t.Fatalf("Enrich = %d, want 1", got)
	}
	if full.RawContent != "" {
		t.Error("article with enough text should not be enriched")
	}
	if !strings.Contains(stub.RawContent, "First real paragraph") {
		t.Errorf("stub not enriched: %q", stub.RawContent)
	}
}

func TestEnrichRespectsMaxArticles(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, articlePage)
	}))
	defer srv.Close()
	e := NewExtractor(config.EnrichConfig{MinTextChars: 200, MaxArticles: 1}, srv.Client())

	articles := []*news.Article{
		{URL: srv.URL, Description: "stub one"},
		{URL: srv.URL, Description: "stub two"},
		{URL: srv.URL, Description: "stub three"},
	}
	got := e.Enrich(context.Background(), articles)
	if got != 1 {
		t.Errorf("Enrich = %d, want 1", got)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
}
