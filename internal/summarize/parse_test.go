package summarize

import (
	"strings"
	"testing"

	"github.com/briefwire/newsbrief/internal/news"
)

func TestParseResponseLabeledSections(t *testing.T) {
	raw := `SUMMARY: The central bank raised rates by a quarter point.

KEY TAKEAWAYS:
- Rates now sit at their highest level in a decade.
- Officials signaled one more increase this year.

WHY IT MATTERS: Borrowing costs shape mortgages and hiring.`

	got, err := parseResponse(raw, &news.Article{})
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if got.Summary != "The central bank raised rates by a quarter point." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if len(got.KeyTakeaways) != 2 {
		t.Fatalf("KeyTakeaways = %v, want 2 entries", got.KeyTakeaways)
	}
	if got.KeyTakeaways[1] != "Officials signaled one more increase this year." {
		t.Errorf("KeyTakeaways[1] = %q", got.KeyTakeaways[1])
	}
	if got.WhyItMatters != "Borrowing costs shape mortgages and hiring." {
		t.Errorf("WhyItMatters = %q", got.WhyItMatters)
	}
}

func TestParseResponseBoldLabelsAndNumberedBullets(t *testing.T) {
	raw := `**SUMMARY:** Lawmakers approved the spending package late Friday.

**KEY TAKEAWAYS:**
1. The vote crossed party lines.
2) Agencies stay funded through March.

**WHY IT MATTERS:** A shutdown is off the table for now.`

	got, err := parseResponse(raw, &news.Article{})
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if got.Summary != "Lawmakers approved the spending package late Friday." {
		t.Errorf("Summary = %q", got.Summary)
	}
	want := []string{"The vote crossed party lines.", "Agencies stay funded through March."}
	if len(got.KeyTakeaways) != 2 || got.KeyTakeaways[0] != want[0] || got.KeyTakeaways[1] != want[1] {
		t.Errorf("KeyTakeaways = %v, want %v", got.KeyTakeaways, want)
	}
	if got.WhyItMatters != "A shutdown is off the table for now." {
		t.Errorf("WhyItMatters = %q", got.WhyItMatters)
	}
}

func TestParseResponseFillsMissingSections(t *testing.T) {
	raw := `SUMMARY: The storm knocked out power to half the county overnight. Crews expect restoration to take several days.`

	a := &news.Article{Category: news.CategoryBusiness}
	got, err := parseResponse(raw, a)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if len(got.KeyTakeaways) == 0 {
		t.Error("takeaways should be derived from the summary when missing")
	}
	if !strings.Contains(got.KeyTakeaways[0], "knocked out power") {
		t.Errorf("KeyTakeaways[0] = %q", got.KeyTakeaways[0])
	}
	if got.WhyItMatters != whyFallback(news.CategoryBusiness) {
		t.Errorf("WhyItMatters = %q, want business fallback", got.WhyItMatters)
	}
}

func TestParseResponseUnlabeledProse(t *testing.T) {
	raw := `The city council voted to expand the transit line. Construction begins next spring and will add twelve stations. Officials expect ridership to double within five years.`

	got, err := parseResponse(raw, &news.Article{})
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if !strings.HasPrefix(got.Summary, "The city council voted") {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestParseResponseEmpty(t *testing.T) {
	if _, err := parseResponse("  \n\n ", &news.Article{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestSanitizeRemovesInlineNote(t *testing.T) {
	in := "The markets rallied on the news.\n(Note: this summary was generated automatically and may contain errors.) Analysts remain cautious."
	out := Sanitize(in)
	if strings.Contains(strings.ToLower(out), "note:") {
		t.Errorf("inline note kept: %q", out)
	}
	if !strings.Contains(out, "Analysts remain cautious.") {
		t.Errorf("content after note lost: %q", out)
	}
}

func TestSanitizeRemovesNoteLine(t *testing.T) {
	in := "Note: I am a language model and cannot verify this.\nThe council approved the budget."
	out := Sanitize(in)
	if strings.Contains(strings.ToLower(out), "note:") {
		t.Errorf("note line kept: %q", out)
	}
	if !strings.Contains(out, "council approved") {
		t.Errorf("content line lost: %q", out)
	}
}

func TestSanitizeRemovesBracketedNoteAndAIBoilerplate(t *testing.T) {
	in := "[Note: machine generated] The vote passed.\nAs an AI, I should mention this is a summary."
	out := Sanitize(in)
	lower := strings.ToLower(out)
	if strings.Contains(lower, "note") || strings.Contains(lower, "as an ai") {
		t.Errorf("boilerplate kept: %q", out)
	}
	if !strings.Contains(out, "The vote passed.") {
		t.Errorf("content lost: %q", out)
	}
}

func TestSanitizeRemovesCodeFences(t *testing.T) {
	in := "```\nSUMMARY: The merger cleared its final regulatory hurdle.\n```"
	out := Sanitize(in)
	if strings.Contains(out, "```") {
		t.Errorf("fence kept: %q", out)
	}
	if !strings.Contains(out, "merger cleared") {
		t.Errorf("fenced content lost: %q", out)
	}
}

func TestFirstSentencesSkipsFragments(t *testing.T) {
	got := firstSentences("Ok. The committee will reconvene on Thursday morning. A final report follows next month.", 2)
	if len(got) != 2 {
		t.Fatalf("got %d sentences, want 2", len(got))
	}
	if got[0] != "The committee will reconvene on Thursday morning." {
		t.Errorf("got[0] = %q", got[0])
	}
}
