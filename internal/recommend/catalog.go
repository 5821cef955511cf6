package recommend

import (
	"cmp"
	"slices"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

const topKeywordsPerLibrary = 5

// Popular returns the most used keywords, optionally restricted to one
// library by affinity. A limit of zero or less returns all of them.
func Popular(m *model.Model, library string, limit int) []models.PopularKeyword {
	out := []models.PopularKeyword{}
	if m == nil {
		return out
	}
	m.EachKeyword(func(name string, count int64) bool {
		lib := m.Affinity(name)
		if libraryMatches(library, lib) {
			out = append(out, models.PopularKeyword{Keyword: name, Library: lib, Frequency: count})
		}
		return true
	})
	slices.SortFunc(out, func(a, b models.PopularKeyword) int {
		if c := cmp.Compare(b.Frequency, a.Frequency); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Libraries summarises every library seen in training, sorted by name.
func Libraries(m *model.Model) []models.LibraryStats {
	out := []models.LibraryStats{}
	if m == nil {
		return out
	}
	for _, lib := range m.Libraries() {
		kws := m.LibraryKeywords(lib)
		stats := models.LibraryStats{Library: lib, KeywordCount: len(kws)}
		for _, kc := range kws {
			stats.TotalUsage += kc.Count
		}
		stats.TopKeywords = kws[:min(len(kws), topKeywordsPerLibrary)]
		out = append(out, stats)
	}
	return out
}
