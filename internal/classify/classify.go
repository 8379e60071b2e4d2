// Package classify assigns each article exactly one category and a set of
// non-exclusive personalization tags. The rules are deterministic: source
// table first, then keyword lists in a fixed priority order, then the
// general fallback, so every article always ends up classified.
package classify

import (
	"regexp"
	"strings"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/news"
)

// Classifier carries the per-run source overrides on top of the built-in
// rule tables.
type Classifier struct {
	pinned    map[string]news.Category
	exclusive map[string]bool
}

// New builds a classifier from the configured sources. A source marked
// exclusive files everything it produces under the exclusive section; a
// pinned category overrides the keyword rules for that source.
func New(sources []config.SourceConfig) *Classifier {
	c := &Classifier{
		pinned:    make(map[string]news.Category),
		exclusive: make(map[string]bool),
	}
	for _, s := range sources {
		name := strings.ToLower(s.Name)
		if s.Exclusive {
			c.exclusive[name] = true
		}
		if s.Category != "" {
			c.pinned[name] = news.Category(s.Category)
		}
	}
	return c
}

// Classify returns the category and tags for one article. The category
// decision order: exclusive source, pinned source category, built-in
// source table, keyword rules by priority, general fallback.
func (c *Classifier) Classify(a *news.Article) (news.Category, []string) {
	text := strings.ToLower(a.Title + " " + a.Description)
	tags := matchTags(text)

	name := strings.ToLower(a.SourceName)
	if c.exclusive[name] {
		return news.CategoryExclusive, tags
	}
	if cat, ok := c.pinned[name]; ok {
		return cat, tags
	}
	if cat, ok := sourceCategory(name); ok {
		return cat, tags
	}

	for _, rule := range categoryRules {
		if rule.matches(text) {
			return rule.category, tags
		}
	}
	return news.CategoryGeneral, tags
}

// Apply classifies every article in place.
func (c *Classifier) Apply(articles []*news.Article) {
	for _, a := range articles {
		a.Category, a.Tags = c.Classify(a)
	}
}

// sourceCategoryRules maps well-known outlet names to their home section.
// Matched by substring so "BBC World" and "BBC News" both hit "bbc".
var sourceCategoryRules = []struct {
	substr   string
	category news.Category
}{
	{"bbc", news.CategoryInternational},
	{"al jazeera", news.CategoryInternational},
	{"deutsche welle", news.CategoryInternational},
	{"france 24", news.CategoryInternational},
	{"bloomberg", news.CategoryBusiness},
	{"cnbc", news.CategoryBusiness},
	{"marketwatch", news.CategoryBusiness},
	{"financial times", news.CategoryBusiness},
	{"forbes", news.CategoryBusiness},
	{"techcrunch", news.CategoryPersonalized},
	{"wired", news.CategoryPersonalized},
	{"ars technica", news.CategoryPersonalized},
	{"the verge", news.CategoryPersonalized},
	{"engadget", news.CategoryPersonalized},
}

func sourceCategory(name string) (news.Category, bool) {
	for _, rule := range sourceCategoryRules {
		if strings.Contains(name, rule.substr) {
			return rule.category, true
		}
	}
	return "", false
}

type keywordRule struct {
	category news.Category
	keywords []string
	patterns []*regexp.Regexp // compiled word-boundary patterns for short keywords
}

// matches reports whether any keyword occurs in text. Keywords of three
// characters or fewer match on word boundaries so "ai" does not fire
// inside "said"; longer ones match as plain substrings, which also
// catches inflections ("diplomat" in "diplomatic").
func (r *keywordRule) matches(text string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func newRule(category news.Category, keywords ...string) keywordRule {
	rule := keywordRule{category: category}
	for _, kw := range keywords {
		if len(kw) <= 3 && !strings.Contains(kw, " ") {
			rule.patterns = append(rule.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
			continue
		}
		rule.keywords = append(rule.keywords, kw)
	}
	return rule
}

// categoryRules are evaluated in priority order; the first match wins.
var categoryRules = []keywordRule{
	newRule(news.CategoryDomestic,
		"congress", "senate", "white house", "supreme court", "president",
		"governor", "election", "campaign trail", "capitol", "washington",
		"statehouse", "federal court", "federal judge", "justice department",
		"medicare", "irs"),
	newRule(news.CategoryInternational,
		"international", "global", "world leaders", "foreign", "united nations",
		"nato", "ukraine", "china", "russia", "europe", "middle east",
		"embassy", "diplomat", "treaty", "ceasefire"),
	newRule(news.CategoryBusiness,
		"economy", "economic", "market", "stocks", "inflation", "earnings",
		"revenue", "merger", "acquisition", "tariff", "gdp", "unemployment",
		"interest rate", "federal reserve", "wall street"),
	newRule(news.CategoryPersonalized,
		"technology", "software", "artificial intelligence", "ai", "startup",
		"science", "research", "health", "climate", "education", "space",
		"crypto"),
}

type tagRule struct {
	tag  string
	rule keywordRule
}

var tagRules = []tagRule{
	{"Technology", newRule("", "technology", "tech", "software", "hardware", "gadget", "smartphone", "app")},
	{"Artificial Intelligence", newRule("", "artificial intelligence", "ai", "machine learning", "chatbot", "llm")},
	{"Business & Finance", newRule("", "business", "finance", "market", "startup", "economy", "investment")},
	{"Policy & Regulation", newRule("", "policy", "regulation", "legislation", "congress", "senate", "lawmaker")},
	{"Education", newRule("", "education", "school", "university", "student", "tuition")},
	{"Healthcare", newRule("", "health", "hospital", "medical", "medicare", "vaccine", "prescription")},
	{"Environment", newRule("", "climate", "environment", "emissions", "wildfire", "hurricane", "renewable")},
	{"Science", newRule("", "science", "research", "study finds", "nasa", "space", "physics")},
}

// matchTags returns every tag whose keyword list matches, in table order.
func matchTags(text string) []string {
	var tags []string
	for _, tr := range tagRules {
		if tr.rule.matches(text) {
			tags = append(tags, tr.tag)
		}
	}
	return tags
}
