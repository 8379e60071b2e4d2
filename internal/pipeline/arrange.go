package pipeline

import (
	"sort"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/news"
)

// arrange orders classified articles into digest order and applies the
// configured caps before any summarization quota is spent: sections
// follow the fixed category order, articles within a section run newest
// first, and the per-source, per-leaning and total caps bound the result.
// A cap of zero means unlimited.
func arrange(articles []*news.Article, limits config.LimitsConfig) []*news.Article {
	byCat := make(map[news.Category][]*news.Article)
	for _, a := range articles {
		byCat[a.Category] = append(byCat[a.Category], a)
	}
	for _, list := range byCat {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].PublishedAt.After(list[j].PublishedAt)
		})
	}

	perSource := make(map[string]int)
	perLeaning := make(map[news.Leaning]int)
	var out []*news.Article

	for _, cat := range news.CategoryOrder {
		limit := categoryCap(cat, limits)
		taken := 0
		for _, a := range byCat[cat] {
			if limits.Total > 0 && len(out) >= limits.Total {
				return out
			}
			if limit > 0 && taken >= limit {
				break
			}
			if limits.PerSource > 0 && perSource[a.SourceName] >= limits.PerSource {
				continue
			}
			if limits.PerLeaning > 0 && politicalLeaning(a.SourceLeaning) &&
				perLeaning[a.SourceLeaning] >= limits.PerLeaning {
				continue
			}

			out = append(out, a)
			perSource[a.SourceName]++
			perLeaning[a.SourceLeaning]++
			taken++
		}
	}
	return out
}

// categoryCap is the per-category cap, with the dedicated international
// cap tightening it for that section.
func categoryCap(cat news.Category, limits config.LimitsConfig) int {
	limit := limits.PerCategory
	if cat == news.CategoryInternational && limits.International > 0 {
		if limit == 0 || limits.International < limit {
			limit = limits.International
		}
	}
	return limit
}

// politicalLeaning reports whether the leaning participates in balance
// capping; international and unknown sources are bounded by the other
// caps instead.
func politicalLeaning(l news.Leaning) bool {
	return l == news.LeaningLeft || l == news.LeaningCenter || l == news.LeaningRight
}
