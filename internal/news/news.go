// Package news holds the article model shared by every pipeline stage.
package news

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Category is the single digest section an article is filed under.
// Assigned exactly once by the categorizer and never re-assigned.
type Category string

const (
	CategoryDomestic      Category = "domestic"
	CategoryInternational Category = "international"
	CategoryBusiness      Category = "business"
	CategoryPersonalized  Category = "personalized"
	CategoryExclusive     Category = "exclusive"
	CategoryGeneral       Category = "general"
)

// CategoryOrder is the fixed display order of digest sections.
var CategoryOrder = []Category{
	CategoryDomestic,
	CategoryInternational,
	CategoryBusiness,
	CategoryPersonalized,
	CategoryExclusive,
	CategoryGeneral,
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, known := range CategoryOrder {
		if c == known {
			return true
		}
	}
	return false
}

// SectionTitle returns the rendered heading of the category's section.
func (c Category) SectionTitle() string {
	switch c {
	case CategoryDomestic:
		return "U.S. Headlines"
	case CategoryInternational:
		return "World News"
	case CategoryBusiness:
		return "Business & Economy"
	case CategoryPersonalized:
		return "Your Interests"
	case CategoryExclusive:
		return "Source Spotlight"
	default:
		return "More News"
	}
}

// SectionDescription returns the one-line blurb under the section heading.
func (c Category) SectionDescription() string {
	switch c {
	case CategoryDomestic:
		return "Top stories from across the United States"
	case CategoryInternational:
		return "Major stories from around the globe"
	case CategoryBusiness:
		return "Markets, companies and economic policy"
	case CategoryPersonalized:
		return "Stories matched to your configured interests"
	case CategoryExclusive:
		return "Reporting highlighted from a single source"
	default:
		return "Everything else worth a skim"
	}
}

// Leaning is the editorial leaning of an article's source, used only for
// balance accounting in the run statistics.
type Leaning string

const (
	LeaningLeft          Leaning = "left"
	LeaningCenter        Leaning = "center"
	LeaningRight         Leaning = "right"
	LeaningInternational Leaning = "international"
	LeaningUnknown       Leaning = "unknown"
)

// ParseLeaning maps a config string to a Leaning, defaulting to unknown.
func ParseLeaning(s string) Leaning {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return LeaningLeft
	case "center", "centre":
		return LeaningCenter
	case "right":
		return LeaningRight
	case "international":
		return LeaningInternational
	default:
		return LeaningUnknown
	}
}

// AgeBucket labels how fresh an article is relative to the run time.
type AgeBucket string

const (
	AgeBreaking  AgeBucket = "Breaking"
	AgeToday     AgeBucket = "Today"
	AgeYesterday AgeBucket = "Yesterday"
	AgeThisWeek  AgeBucket = "This Week"
	AgeOlder     AgeBucket = "Older"
)

// AgeOf buckets a publication time against now.
func AgeOf(publishedAt, now time.Time) AgeBucket {
	age := now.Sub(publishedAt)
	switch {
	case age < 6*time.Hour:
		return AgeBreaking
	case age < 24*time.Hour:
		return AgeToday
	case age < 48*time.Hour:
		return AgeYesterday
	case age < 7*24*time.Hour:
		return AgeThisWeek
	default:
		return AgeOlder
	}
}

// Article is the unit of work flowing through the pipeline. It is owned by
// the pipeline for the duration of a run and handed read-only to the
// renderer at the end.
type Article struct {
	ID           string
	Title        string
	Description  string
	RawContent   string
	URL          string
	CanonicalURL string

	SourceName    string
	SourceLeaning Leaning

	PublishedAt time.Time
	Estimated   bool // date was guessed, not reported by the source
	FetchedAt   time.Time

	Category Category
	Tags     []string

	Summary      string
	KeyTakeaways []string
	WhyItMatters string
	Unsummarized bool // summarization failed and pass-through policy kept it

	// DedupKey is the normalized title fingerprint, computed once by the
	// deduplicator.
	DedupKey string
}

// Age buckets the article's publication time against now.
func (a *Article) Age(now time.Time) AgeBucket {
	return AgeOf(a.PublishedAt, now)
}

// Text returns the best body text available for summarization.
func (a *Article) Text() string {
	if strings.TrimSpace(a.RawContent) != "" {
		return a.RawContent
	}
	return a.Description
}

// trackingParams are query parameters that vary per click, not per story.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"igshid": true,
	"mc_cid": true,
	"mc_eid": true,
	"ref":    true,
	"cmpid":  true,
	"ocid":   true,
	"smid":   true,
}

// CanonicalURL normalizes a raw article URL for exact-duplicate detection:
// lowercase scheme and host, fragment removed, tracking query parameters
// stripped, remaining parameters sorted, trailing slash dropped.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if q := u.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for key := range q {
			if trackingParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		rebuilt := url.Values{}
		for _, key := range keys {
			for _, v := range q[key] {
				rebuilt.Add(key, v)
			}
		}
		u.RawQuery = rebuilt.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// MakeID derives the stable article identity from its canonical URL.
func MakeID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])[:16]
}
