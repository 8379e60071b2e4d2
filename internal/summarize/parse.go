package summarize

import (
	"errors"
	"regexp"
	"strings"

	"github.com/briefwire/newsbrief/internal/news"
)

// labelPattern matches a section label at line start, tolerating the
// asterisks and heading markers models like to wrap labels in.
func labelPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^[*#\s]*` + name + `[*\s]*:[*\s]*`)
}

var (
	summaryRe   = labelPattern("summary")
	takeawaysRe = labelPattern("key takeaways")
	whyRe       = labelPattern("why it matters")
	bulletRe    = regexp.MustCompile(`^[-*•]\s*|^\d+[.)]\s*`)

	parenNoteRe   = regexp.MustCompile(`(?is)\(\s*note:.*?\)`)
	bracketNoteRe = regexp.MustCompile(`(?is)\[\s*note:.*?\]`)
)

// Sanitize strips model disclaimers from generated text: parenthesized
// and bracketed "Note:" asides, whole disclaimer lines, "as an AI"
// boilerplate and markdown code fences. The remaining text is
// whitespace-normalized per line.
func Sanitize(text string) string {
	text = parenNoteRe.ReplaceAllString(text, "")
	text = bracketNoteRe.ReplaceAllString(text, "")

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "note:") || strings.HasPrefix(lower, "as an ai") {
			continue
		}
		if strings.HasPrefix(line, "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// parseResponse extracts the labeled sections from a model reply. Missing
// sections are filled from the text itself so a usable reply never fails
// outright; a reply with no usable text at all is an error.
func parseResponse(raw string, a *news.Article) (Result, error) {
	raw = Sanitize(raw)

	var summary, why strings.Builder
	var takeaways []string
	current := ""

	appendTo := func(b *strings.Builder, text string) {
		if text == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(text)
	}

	for _, raw := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case summaryRe.MatchString(line):
			current = "summary"
			appendTo(&summary, summaryRe.ReplaceAllString(line, ""))
		case takeawaysRe.MatchString(line):
			current = "takeaways"
			if rest := strings.TrimSpace(takeawaysRe.ReplaceAllString(line, "")); rest != "" {
				takeaways = append(takeaways, stripBullet(rest))
			}
		case whyRe.MatchString(line):
			current = "why"
			appendTo(&why, whyRe.ReplaceAllString(line, ""))
		default:
			switch current {
			case "summary":
				appendTo(&summary, line)
			case "takeaways":
				if t := stripBullet(line); t != "" {
					takeaways = append(takeaways, t)
				}
			case "why":
				appendTo(&why, line)
			}
		}
	}

	result := Result{
		Summary:      strings.TrimSpace(summary.String()),
		KeyTakeaways: takeaways,
		WhyItMatters: strings.TrimSpace(why.String()),
	}

	if result.Summary == "" {
		// Unlabeled reply: take the leading sentences as the summary.
		result.Summary = strings.Join(firstSentences(raw, 3), " ")
	}
	if result.Summary == "" {
		return Result{}, errors.New("no usable text in model response")
	}
	if len(result.KeyTakeaways) == 0 {
		result.KeyTakeaways = firstSentences(result.Summary, 2)
	}
	if len(result.KeyTakeaways) > 3 {
		result.KeyTakeaways = result.KeyTakeaways[:3]
	}
	if result.WhyItMatters == "" {
		result.WhyItMatters = whyFallback(a.Category)
	}
	return result, nil
}

func stripBullet(line string) string {
	return strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// firstSentences returns up to n leading sentences of text, skipping
// fragments too short to stand alone.
func firstSentences(text string, n int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	parts := sentenceEndRe.Split(text, -1)
	ends := sentenceEndRe.FindAllStringSubmatch(text, -1)

	var out []string
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if len(part) < 20 {
			continue
		}
		if i < len(ends) {
			part += ends[i][1]
		}
		out = append(out, part)
		if len(out) == n {
			break
		}
	}
	if len(out) == 0 && len(text) >= 20 {
		out = []string{text}
	}
	return out
}

// whyFallback supplies a serviceable why-it-matters line when the model
// reply omitted one.
func whyFallback(cat news.Category) string {
	switch cat {
	case news.CategoryDomestic:
		return "Shapes policy debates and daily life across the country."
	case news.CategoryInternational:
		return "Signals shifts in the global landscape worth watching."
	case news.CategoryBusiness:
		return "Carries implications for markets, jobs and household budgets."
	case news.CategoryPersonalized:
		return "Develops a topic you follow closely."
	case news.CategoryExclusive:
		return "An angle not yet covered in the general feeds."
	default:
		return "A story drawing attention across multiple outlets."
	}
}
