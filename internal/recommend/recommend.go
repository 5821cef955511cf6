// Package recommend ranks next-keyword candidates from a trained model using
// ordered backoff over its transition tables.
package recommend

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

// Defaults
const (
	DefaultBackoffDiscount = 0.5
	DefaultMaxResults      = 10
	nextKeywordsLimit      = 3
)

// Options tunes the engine.
type Options struct {
	// BackoffDiscount d scales a candidate found at order k by d^(K-k) and
	// unigram fallbacks by d^K. Must be in (0, 1].
	BackoffDiscount float64
}

// DefaultOptions returns a discount of 0.5.
func DefaultOptions() Options {
	return Options{BackoffDiscount: DefaultBackoffDiscount}
}

// Engine answers recommend queries. It holds no model state and is safe for
// concurrent use.
type Engine struct {
	discount float64
}

// New returns an engine. Out-of-range discounts fall back to the default.
func New(opts Options) *Engine {
	d := opts.BackoffDiscount
	if d <= 0 || d > 1 || math.IsNaN(d) {
		d = DefaultBackoffDiscount
	}
	return &Engine{discount: d}
}

// Query is one recommend request.
type Query struct {
	// Context is the keywords executed so far, oldest first.
	Context []string
	// Library restricts candidates to keywords whose affinity matches,
	// case-insensitively. Empty means no filter.
	Library string
	// MaxResults truncates the list. Zero or negative returns everything.
	MaxResults int
}

// Result is a ranked candidate list plus how it was found.
type Result struct {
	Items []models.Recommendation
	// Order is the context order used, 0 for the unigram fallback.
	Order int
	// Outcome is "order_<k>", models.OutcomeUnigram or models.OutcomeEmpty.
	Outcome string
}

// Outcome returns the lookup outcome label for a chosen order.
func Outcome(order int) string {
	return fmt.Sprintf("order_%d", order)
}

// Recommend ranks candidates for the keyword following q.Context. The first
// order, from min(K, len(context)) down to 1, whose context was observed
// supplies the candidates; lower orders are not consulted after that. With
// no observed context the whole vocabulary is ranked by frequency.
func (e *Engine) Recommend(m *model.Model, q Query) Result {
	if m == nil || m.Empty() {
		return Result{Items: []models.Recommendation{}, Outcome: models.OutcomeEmpty}
	}
	K := m.Order()
	ctx := q.Context
	if len(ctx) > K {
		ctx = ctx[len(ctx)-K:]
	}

	for k := len(ctx); k >= 1; k-- {
		window := ctx[len(ctx)-k:]
		next, total := m.Next(window)
		if len(next) == 0 || total == 0 {
			continue
		}
		scale := math.Pow(e.discount, float64(K-k))
		label := strings.Join(window, " > ")
		items := make([]models.Recommendation, 0, len(next))
		for _, kc := range next {
			lib := m.Affinity(kc.Keyword)
			if !libraryMatches(q.Library, lib) {
				continue
			}
			items = append(items, models.Recommendation{
				Keyword:    kc.Keyword,
				Library:    lib,
				Confidence: float64(kc.Count) / float64(total) * scale,
				UsageCount: kc.Count,
				Order:      k,
				Context:    label,
			})
		}
		return Result{Items: e.finish(m, items, q.MaxResults), Order: k, Outcome: Outcome(k)}
	}

	scale := math.Pow(e.discount, float64(K))
	total := m.Events()
	items := make([]models.Recommendation, 0, m.Size())
	m.EachKeyword(func(name string, count int64) bool {
		lib := m.Affinity(name)
		if libraryMatches(q.Library, lib) {
			items = append(items, models.Recommendation{
				Keyword:    name,
				Library:    lib,
				Confidence: float64(count) / float64(total) * scale,
				UsageCount: count,
			})
		}
		return true
	})
	return Result{Items: e.finish(m, items, q.MaxResults), Outcome: models.OutcomeUnigram}
}

func (e *Engine) finish(m *model.Model, items []models.Recommendation, limit int) []models.Recommendation {
	slices.SortFunc(items, func(a, b models.Recommendation) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		if c := cmp.Compare(b.UsageCount, a.UsageCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	for i := range items {
		items[i].NextKeywords = nextKeywords(m, items[i].Keyword)
	}
	return items
}

// nextKeywords lists the most common order-1 successors of name.
func nextKeywords(m *model.Model, name string) []string {
	next, _ := m.Next([]string{name})
	if len(next) > nextKeywordsLimit {
		next = next[:nextKeywordsLimit]
	}
	if len(next) == 0 {
		return nil
	}
	out := make([]string, len(next))
	for i, kc := range next {
		out[i] = kc.Keyword
	}
	return out
}

// libraryMatches applies a library filter. Keywords never seen with a
// library fail every non-empty filter.
func libraryMatches(filter, affinity string) bool {
	if filter == "" {
		return true
	}
	return affinity != "" && strings.EqualFold(filter, affinity)
}
