// Package render turns a pipeline result into digest copy: an HTML
// variant sized for Telegram and a plain text variant for stdout and
// files. Articles arrive already arranged; rendering never reorders.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/briefwire/newsbrief/internal/news"
)

const (
	separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━"
	// snippetChars bounds the description shown for articles that went
	// out unsummarized.
	snippetChars = 300
)

// Digest is everything the renderers need for one issue.
type Digest struct {
	GeneratedAt time.Time
	Location    *time.Location
	Articles    []*news.Article
	PerLeaning  map[news.Leaning]int
}

func (d Digest) localTime() time.Time {
	if d.Location != nil {
		return d.GeneratedAt.In(d.Location)
	}
	return d.GeneratedAt
}

// Limit returns a copy of the digest keeping at most perSection articles
// in each category, for shrinking a message that overruns a transport
// limit.
func Limit(d Digest, perSection int) Digest {
	counts := make(map[news.Category]int)
	kept := make([]*news.Article, 0, len(d.Articles))
	for _, a := range d.Articles {
		if counts[a.Category] >= perSection {
			continue
		}
		counts[a.Category]++
		kept = append(kept, a)
	}
	d.Articles = kept
	return d
}

// HTML renders the digest with Telegram-compatible markup.
func HTML(d Digest) string {
	var b strings.Builder

	now := d.localTime()
	b.WriteString(fmt.Sprintf("📰 <b>NewsBrief</b> — %s\n", now.Format("Monday, January 2")))
	b.WriteString(separator + "\n")

	if len(d.Articles) == 0 {
		b.WriteString("\nNo fresh stories today.\n")
		return b.String()
	}

	number := 1
	for _, cat := range news.CategoryOrder {
		section := articlesIn(d.Articles, cat)
		if len(section) == 0 {
			continue
		}

		b.WriteString(fmt.Sprintf("\n<b>%s</b>\n\n", html.EscapeString(strings.ToUpper(cat.SectionTitle()))))
		for _, a := range section {
			writeItemHTML(&b, a, number, now)
			number++
		}
	}

	b.WriteString(separator + "\n")
	b.WriteString(fmt.Sprintf("Generated %s", now.Format("15:04 MST")))
	if line := leaningLine(d.PerLeaning); line != "" {
		b.WriteString(" · " + line)
	}
	b.WriteString("\n")
	return b.String()
}

func writeItemHTML(b *strings.Builder, a *news.Article, number int, now time.Time) {
	b.WriteString(fmt.Sprintf("%d. <a href=\"%s\">%s</a>\n",
		number, html.EscapeString(a.URL), html.EscapeString(a.Title)))
	b.WriteString(fmt.Sprintf("<i>%s · %s</i>\n", html.EscapeString(a.SourceName), ageLabel(a, now)))

	if a.Unsummarized {
		if text := snippet(a.Description, snippetChars); text != "" {
			b.WriteString(html.EscapeString(text) + "\n")
		}
		b.WriteString("\n")
		return
	}

	b.WriteString(html.EscapeString(a.Summary) + "\n")
	for _, takeaway := range a.KeyTakeaways {
		b.WriteString("• " + html.EscapeString(takeaway) + "\n")
	}
	if a.WhyItMatters != "" {
		b.WriteString("<i>Why it matters:</i> " + html.EscapeString(a.WhyItMatters) + "\n")
	}
	b.WriteString("\n")
}

// Text renders the digest as plain text.
func Text(d Digest) string {
	var b strings.Builder

	now := d.localTime()
	b.WriteString(fmt.Sprintf("NewsBrief — %s\n", now.Format("Monday, January 2")))
	b.WriteString(strings.Repeat("=", 40) + "\n")

	if len(d.Articles) == 0 {
		b.WriteString("\nNo fresh stories today.\n")
		return b.String()
	}

	number := 1
	for _, cat := range news.CategoryOrder {
		section := articlesIn(d.Articles, cat)
		if len(section) == 0 {
			continue
		}

		title := cat.SectionTitle()
		b.WriteString("\n" + title + "\n")
		b.WriteString(strings.Repeat("-", len(title)) + "\n")
		b.WriteString(cat.SectionDescription() + "\n\n")

		for _, a := range section {
			b.WriteString(fmt.Sprintf("%d. %s\n", number, a.Title))
			b.WriteString(fmt.Sprintf("   %s · %s · %s\n", a.SourceName, ageLabel(a, now), a.URL))
			if a.Unsummarized {
				if text := snippet(a.Description, snippetChars); text != "" {
					b.WriteString("   " + text + "\n")
				}
			} else {
				b.WriteString("   " + a.Summary + "\n")
				for _, takeaway := range a.KeyTakeaways {
					b.WriteString("   - " + takeaway + "\n")
				}
				if a.WhyItMatters != "" {
					b.WriteString("   Why it matters: " + a.WhyItMatters + "\n")
				}
			}
			b.WriteString("\n")
			number++
		}
	}

	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString(fmt.Sprintf("Generated %s", now.Format("15:04 MST")))
	if line := leaningLine(d.PerLeaning); line != "" {
		b.WriteString(" · " + line)
	}
	b.WriteString("\n")
	return b.String()
}

func articlesIn(articles []*news.Article, cat news.Category) []*news.Article {
	var out []*news.Article
	for _, a := range articles {
		if a.Category == cat {
			out = append(out, a)
		}
	}
	return out
}

// ageLabel renders the freshness bucket, with a tilde marking articles
// whose publication date was estimated rather than reported.
func ageLabel(a *news.Article, now time.Time) string {
	label := string(news.AgeOf(a.PublishedAt, now))
	if a.Estimated {
		return "~" + label
	}
	return label
}

// leaningLine summarizes source balance, political leanings first.
func leaningLine(counts map[news.Leaning]int) string {
	if len(counts) == 0 {
		return ""
	}
	order := []news.Leaning{
		news.LeaningLeft, news.LeaningCenter, news.LeaningRight,
		news.LeaningInternational, news.LeaningUnknown,
	}
	var parts []string
	for _, l := range order {
		if n := counts[l]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, l))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Balance: " + strings.Join(parts, " · ")
}

// snippet cuts text to at most max runes, preferring a sentence boundary.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}

	cut := string([]rune(text)[:max])
	if idx := strings.LastIndex(cut, ". "); idx > max/3 {
		return cut[:idx+1]
	}
	return cut + "…"
}
