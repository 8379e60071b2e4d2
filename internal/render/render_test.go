package render

import (
	"strings"
	"testing"
	"time"

	"github.com/briefwire/newsbrief/internal/news"
)

var renderNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func renderArticle(title string, cat news.Category, age time.Duration) *news.Article {
	return &news.Article{
		ID:          news.MakeID("https://example.com/" + title),
		Title:       title,
		URL:         "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		SourceName:  "Example Wire",
		PublishedAt: renderNow.Add(-age),
		Category:    cat,
		Summary:     "What happened, in brief.",
		KeyTakeaways: []string{
			"First takeaway.",
			"Second takeaway.",
		},
		WhyItMatters: "It changes the outlook.",
	}
}

func TestHTMLSectionsAndNumbering(t *testing.T) {
	d := Digest{
		GeneratedAt: renderNow,
		Articles: []*news.Article{
			renderArticle("Senate passes budget", news.CategoryDomestic, 2*time.Hour),
			renderArticle("Markets rally on earnings", news.CategoryBusiness, 3*time.Hour),
			renderArticle("Ceasefire talks resume", news.CategoryInternational, 4*time.Hour),
		},
	}

	out := HTML(d)

	for _, want := range []string{
		"<b>U.S. HEADLINES</b>",
		"<b>WORLD NEWS</b>",
		"<b>BUSINESS &amp; ECONOMY</b>",
		`1. <a href="https://example.com/Senate-passes-budget">Senate passes budget</a>`,
		"Breaking",
		"• First takeaway.",
		"<i>Why it matters:</i> It changes the outlook.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML missing %q\n%s", want, out)
		}
	}

	// Sections follow display order and numbering is continuous across them.
	domestic := strings.Index(out, "U.S. HEADLINES")
	international := strings.Index(out, "WORLD NEWS")
	business := strings.Index(out, "BUSINESS")
	if !(domestic < international && international < business) {
		t.Errorf("sections out of order: domestic=%d international=%d business=%d", domestic, international, business)
	}
	if !strings.Contains(out, "2. <a") || !strings.Contains(out, "3. <a") {
		t.Errorf("numbering not continuous across sections:\n%s", out)
	}
}

func TestHTMLEscapesMarkup(t *testing.T) {
	a := renderArticle("Q&A: <markets> explained", news.CategoryBusiness, time.Hour)
	a.Summary = "Profits rose by 5% & margins widened."

	out := HTML(Digest{GeneratedAt: renderNow, Articles: []*news.Article{a}})

	if !strings.Contains(out, "Q&amp;A: &lt;markets&gt; explained") {
		t.Errorf("title not escaped:\n%s", out)
	}
	if strings.Contains(out, "<markets>") {
		t.Errorf("raw markup leaked into output:\n%s", out)
	}
}

func TestHTMLUnsummarizedFallsBackToDescription(t *testing.T) {
	a := renderArticle("Story without a summary", news.CategoryGeneral, time.Hour)
	a.Summary = ""
	a.KeyTakeaways = nil
	a.WhyItMatters = ""
	a.Unsummarized = true
	a.Description = "The original feed description stands in for the summary."

	out := HTML(Digest{GeneratedAt: renderNow, Articles: []*news.Article{a}})

	if !strings.Contains(out, "The original feed description") {
		t.Errorf("description fallback missing:\n%s", out)
	}
	if strings.Contains(out, "Why it matters") {
		t.Errorf("unsummarized article rendered summary blocks:\n%s", out)
	}
}

func TestAgeMarkers(t *testing.T) {
	fresh := renderArticle("Fresh story", news.CategoryGeneral, 2*time.Hour)
	estimated := renderArticle("Undated story", news.CategoryGeneral, 30*time.Hour)
	estimated.Estimated = true

	out := HTML(Digest{GeneratedAt: renderNow, Articles: []*news.Article{fresh, estimated}})

	if !strings.Contains(out, "· Breaking") {
		t.Errorf("fresh article missing age bucket:\n%s", out)
	}
	if !strings.Contains(out, "· ~Yesterday") {
		t.Errorf("estimated date not marked:\n%s", out)
	}
}

func TestTextVariant(t *testing.T) {
	d := Digest{
		GeneratedAt: renderNow,
		Articles: []*news.Article{
			renderArticle("Senate passes budget", news.CategoryDomestic, 2*time.Hour),
		},
		PerLeaning: map[news.Leaning]int{
			news.LeaningCenter: 1,
		},
	}

	out := Text(d)

	for _, want := range []string{
		"U.S. Headlines",
		"Top stories from across the United States",
		"1. Senate passes budget",
		"Example Wire · Breaking · https://example.com/Senate-passes-budget",
		"- First takeaway.",
		"Why it matters: It changes the outlook.",
		"Balance: 1 center",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text digest missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "<a href") {
		t.Errorf("text digest contains HTML:\n%s", out)
	}
}

func TestLeaningLineOrder(t *testing.T) {
	line := leaningLine(map[news.Leaning]int{
		news.LeaningUnknown: 2,
		news.LeaningRight:   1,
		news.LeaningLeft:    3,
	})
	if line != "Balance: 3 left · 1 right · 2 unknown" {
		t.Errorf("leaning line = %q", line)
	}
	if leaningLine(nil) != "" {
		t.Errorf("empty counts should render nothing")
	}
}

func TestLimitCapsPerSection(t *testing.T) {
	d := Digest{
		GeneratedAt: renderNow,
		Articles: []*news.Article{
			renderArticle("d one", news.CategoryDomestic, 1*time.Hour),
			renderArticle("d two", news.CategoryDomestic, 2*time.Hour),
			renderArticle("d three", news.CategoryDomestic, 3*time.Hour),
			renderArticle("b one", news.CategoryBusiness, 1*time.Hour),
		},
	}

	trimmed := Limit(d, 2)
	if len(trimmed.Articles) != 3 {
		t.Fatalf("kept %d articles, want 3", len(trimmed.Articles))
	}
	got := []string{trimmed.Articles[0].Title, trimmed.Articles[1].Title, trimmed.Articles[2].Title}
	want := []string{"d one", "d two", "b one"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kept[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(d.Articles) != 4 {
		t.Errorf("Limit mutated its input")
	}
}

func TestEmptyDigest(t *testing.T) {
	out := HTML(Digest{GeneratedAt: renderNow})
	if !strings.Contains(out, "No fresh stories today.") {
		t.Errorf("empty digest message missing:\n%s", out)
	}
}

func TestSnippetSentenceBoundary(t *testing.T) {
	text := "First sentence runs for a while to cross the cut point. Second sentence continues well past the limit with more words."
	got := snippet(text, 60)
	if got != "First sentence runs for a while to cross the cut point." {
		t.Errorf("snippet = %q", got)
	}

	noBoundary := strings.Repeat("x", 100)
	got = snippet(noBoundary, 60)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("snippet without boundary should end with ellipsis, got %q", got)
	}
}
