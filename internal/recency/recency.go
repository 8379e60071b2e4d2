// Package recency keeps only articles published inside the trailing window.
// It is pure: no I/O, no clock reads, everything comes in as arguments.
package recency

import (
	"regexp"
	"time"

	"github.com/briefwire/newsbrief/internal/news"
)

// Result is the outcome of one filter pass.
type Result struct {
	Kept      []*news.Article
	Dropped   int // outside the window, including future-dated
	Estimated int // kept articles whose date had to be guessed
}

// Filter returns the articles whose publication time falls inside
// [now-window, now], normalized to loc. Articles without a usable date get
// one estimated from their text, falling back to the fetch time, and are
// flagged so the renderer can mark them.
func Filter(articles []*news.Article, window time.Duration, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	cutoff := now.Add(-window)

	result := Result{Kept: make([]*news.Article, 0, len(articles))}
	for _, a := range articles {
		if a.PublishedAt.IsZero() {
			a.PublishedAt = estimateDate(a, loc)
			a.Estimated = true
		}
		a.PublishedAt = a.PublishedAt.In(loc)

		if a.PublishedAt.Before(cutoff) || a.PublishedAt.After(now) {
			result.Dropped++
			continue
		}

		if a.Estimated {
			result.Estimated++
		}
		result.Kept = append(result.Kept, a)
	}
	return result
}

var datePatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{
		re:      regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:Z|[+-]\d{2}:\d{2})`),
		layouts: []string{time.RFC3339},
	},
	{
		re:      regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		layouts: []string{"2006-01-02"},
	},
	{
		re:      regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}, \d{4}`),
		layouts: []string{"January 2, 2006"},
	},
	{
		re:      regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) \d{1,2}, \d{4}`),
		layouts: []string{"Jan 2, 2006"},
	},
}

// estimateDate scans the article text for something that looks like a
// publication date. When nothing matches, the fetch time stands in.
func estimateDate(a *news.Article, loc *time.Location) time.Time {
	for _, text := range []string{a.RawContent, a.Description} {
		if text == "" {
			continue
		}
		for _, p := range datePatterns {
			match := p.re.FindString(text)
			if match == "" {
				continue
			}
			for _, layout := range p.layouts {
				if t, err := time.ParseInLocation(layout, match, loc); err == nil {
					return t
				}
			}
		}
	}
	return a.FetchedAt
}
