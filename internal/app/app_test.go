package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/deliver"
	"github.com/briefwire/newsbrief/internal/news"
	"github.com/briefwire/newsbrief/internal/render"
)

func testAppConfig() *config.Config {
	cfg := &config.Config{
		Sources: []config.SourceConfig{
			{Name: "wire", Kind: "rss", URL: "http://feeds.example.com/wire"},
			{Name: "headlines", Kind: "search", Query: "top headlines"},
		},
	}
	return cfg
}

func TestBuildSourcesFromConfig(t *testing.T) {
	a := New(testAppConfig())

	sources, err := a.buildSources()
	if err != nil {
		t.Fatalf("buildSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("built %d sources, want 2", len(sources))
	}
	if sources[0].Name() != "wire" || sources[1].Name() != "headlines" {
		t.Errorf("source names = %s, %s", sources[0].Name(), sources[1].Name())
	}
}

func TestBuildSummarizerWithoutCredentials(t *testing.T) {
	a := New(testAppConfig())

	s, cleanup, err := a.buildSummarizer(context.Background())
	if err != nil {
		t.Fatalf("buildSummarizer: %v", err)
	}
	defer cleanup()
	if s != nil {
		t.Error("summarizer should be nil without credentials")
	}
}

func TestBuildSummarizerOpenAIOnly(t *testing.T) {
	cfg := testAppConfig()
	cfg.OpenAIAPIKey = "sk-test"
	a := New(cfg)

	s, cleanup, err := a.buildSummarizer(context.Background())
	if err != nil {
		t.Fatalf("buildSummarizer: %v", err)
	}
	defer cleanup()
	if s == nil {
		t.Error("summarizer should be built from the OpenAI key alone")
	}
}

func TestDigestMessageShrinksToFit(t *testing.T) {
	long := strings.Repeat("A detailed sentence about the story. ", 20)
	var articles []*news.Article
	for i := 0; i < 12; i++ {
		articles = append(articles, &news.Article{
			Title:       fmt.Sprintf("Story number %d with a reasonably long headline", i),
			URL:         fmt.Sprintf("https://example.com/story-%d", i),
			SourceName:  "Example Wire",
			PublishedAt: time.Now().Add(-time.Hour),
			Category:    news.CategoryGeneral,
			Summary:     long,
			KeyTakeaways: []string{
				"First takeaway with enough words to occupy space.",
				"Second takeaway with enough words to occupy space.",
			},
			WhyItMatters: "Because the outcome shifts expectations for everyone involved.",
		})
	}
	d := render.Digest{GeneratedAt: time.Now(), Articles: articles}

	if full := render.HTML(d); len(full) <= deliver.MaxMessageLen {
		t.Fatalf("test digest too small to exercise shrinking: %d bytes", len(full))
	}

	msg := digestMessage(d)
	if len(msg) > deliver.MaxMessageLen {
		t.Errorf("message still too long: %d bytes", len(msg))
	}
	if !strings.Contains(msg, "Story number 0") {
		t.Errorf("shrunk message lost the lead story:\n%s", msg)
	}
}

func TestTruncateBytesRuneSafe(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes each
	got := truncateBytes(s, 9)
	if len(got) != 8 {
		t.Errorf("truncated to %d bytes, want 8 (rune boundary)", len(got))
	}
	if got != strings.Repeat("é", 4) {
		t.Errorf("got %q", got)
	}
	if truncateBytes("short", 100) != "short" {
		t.Error("short string should be untouched")
	}
}
