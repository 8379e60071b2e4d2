// Package dedup removes exact and near-duplicate articles from the merged
// stream. The exact pass collapses identical canonical URLs; the fuzzy pass
// collapses near-identical titles across sources.
package dedup

import (
	"strings"
	"unicode"

	"github.com/briefwire/newsbrief/internal/news"
)

// Result is the outcome of one dedup pass.
type Result struct {
	Kept       []*news.Article
	ExactDrops int
	FuzzyDrops int
}

// Dedupe removes duplicates from articles, preserving first-occurrence order.
// Input order is the merge order (source declaration order), which makes the
// outcome reproducible for identical inputs.
//
// When titles collide above the threshold the slot of the first occurrence is
// kept but the richer record wins it: longer description first, then earliest
// publication time. The output never contains a pair at or above the
// threshold, so running Dedupe on its own output changes nothing.
func Dedupe(articles []*news.Article, threshold float64) Result {
	var result Result

	// Exact pass: first canonical URL wins outright.
	seen := make(map[string]bool, len(articles))
	survivors := make([]*news.Article, 0, len(articles))
	for _, a := range articles {
		if seen[a.CanonicalURL] {
			result.ExactDrops++
			continue
		}
		seen[a.CanonicalURL] = true
		survivors = append(survivors, a)
	}

	// Fuzzy pass: O(n²) over surviving titles, bounded by the per-run caps.
	accepted := make([]*news.Article, 0, len(survivors))
	acceptedTokens := make([][]string, 0, len(survivors))

	for _, candidate := range survivors {
		tokens := titleTokens(candidate.Title)
		candidate.DedupKey = strings.Join(tokens, " ")

		var matches []int
		for i := range accepted {
			if similarity(tokens, acceptedTokens[i]) >= threshold {
				matches = append(matches, i)
			}
		}

		if len(matches) == 0 {
			accepted = append(accepted, candidate)
			acceptedTokens = append(acceptedTokens, tokens)
			continue
		}

		// Pick the richest record among the incumbents and the candidate.
		winner, winnerTokens := accepted[matches[0]], acceptedTokens[matches[0]]
		for _, i := range matches[1:] {
			if strictlyBetter(accepted[i], winner) {
				winner, winnerTokens = accepted[i], acceptedTokens[i]
			}
		}
		if strictlyBetter(candidate, winner) {
			winner, winnerTokens = candidate, tokens
		}

		accepted[matches[0]] = winner
		acceptedTokens[matches[0]] = winnerTokens
		for j := len(matches) - 1; j >= 1; j-- {
			i := matches[j]
			accepted = append(accepted[:i], accepted[i+1:]...)
			acceptedTokens = append(acceptedTokens[:i], acceptedTokens[i+1:]...)
		}
		result.FuzzyDrops += len(matches)
	}

	result.Kept = accepted
	return result
}

// strictlyBetter reports whether a should displace the incumbent b:
// longer description, then earlier publication time. Full ties keep b.
func strictlyBetter(a, b *news.Article) bool {
	if len(a.Description) != len(b.Description) {
		return len(a.Description) > len(b.Description)
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	return false
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true,
	"and": true, "or": true, "but": true,
	"as": true, "at": true, "by": true, "for": true, "from": true,
	"in": true, "into": true, "of": true, "on": true, "onto": true,
	"over": true, "to": true, "up": true, "with": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "has": true, "have": true, "had": true, "will": true,
	"would": true, "after": true, "before": true, "amid": true,
	"it": true, "its": true, "this": true, "that": true,
}

// titleTokens normalizes a title into its significant tokens: lowercase,
// punctuation stripped, whitespace collapsed, stopwords removed.
func titleTokens(title string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// tokensEqual matches exact tokens plus close morphological variants: one
// token being a prefix of the other, at three characters or more. That is
// what lets "Fed" and "Federal" count as the same word.
func tokensEqual(a, b string) bool {
	if a == b {
		return true
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	return len(short) >= 3 && strings.HasPrefix(long, short)
}

// similarity is the overlap coefficient between two token lists: matched
// tokens divided by the size of the smaller list.
func similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == 0 && len(b) == 0 {
			return 1
		}
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	used := make([]bool, len(large))
	matched := 0
	for _, s := range small {
		for i, l := range large {
			if used[i] {
				continue
			}
			if tokensEqual(s, l) {
				used[i] = true
				matched++
				break
			}
		}
	}

	return float64(matched) / float64(len(small))
}
