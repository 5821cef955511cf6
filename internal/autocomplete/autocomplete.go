// Package autocomplete suggests keyword names for a partially typed input.
package autocomplete

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

// Mode selects which matches qualify.
type Mode string

// Match modes, loosest first.
const (
	// ModeFuzzy accepts prefix, substring and edit-distance matches.
	ModeFuzzy Mode = "fuzzy"
	// ModeSubstring accepts prefix and substring matches.
	ModeSubstring Mode = "substring"
	// ModePrefix accepts prefix matches only.
	ModePrefix Mode = "prefix"
)

// ParseMode validates a mode name. Empty selects ModeFuzzy.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFuzzy:
		return ModeFuzzy, nil
	case ModeSubstring:
		return ModeSubstring, nil
	case ModePrefix:
		return ModePrefix, nil
	default:
		return "", fmt.Errorf("unknown autocomplete mode %q", s)
	}
}

// Defaults
const (
	DefaultFuzzyThreshold  = 0.6
	DefaultMinFuzzyLength  = 3
	DefaultQualityWeight   = 0.4
	DefaultFrequencyWeight = 0.4
	DefaultMaxResults      = 20
)

// Score tiers. The weighted quality and frequency terms stay below 1 so a
// better tier always wins.
const (
	tierPrefix    = 2.0
	tierSubstring = 1.0
	tierFuzzy     = 0.0
)

// Options tunes matching and scoring.
type Options struct {
	Mode            Mode
	FuzzyThreshold  float64 // fuzzy similarity must exceed this
	MinFuzzyLength  int
	QualityWeight   float64
	FrequencyWeight float64
}

// DefaultOptions returns fuzzy matching with the default weights.
func DefaultOptions() Options {
	return Options{
		Mode:            ModeFuzzy,
		FuzzyThreshold:  DefaultFuzzyThreshold,
		MinFuzzyLength:  DefaultMinFuzzyLength,
		QualityWeight:   DefaultQualityWeight,
		FrequencyWeight: DefaultFrequencyWeight,
	}
}

// Engine ranks suggestions. It is safe for concurrent use.
type Engine struct {
	opts Options
}

// New returns an engine. Weights are clamped so their sum stays below one
// tier step.
func New(opts Options) *Engine {
	d := DefaultOptions()
	if opts.Mode == "" {
		opts.Mode = d.Mode
	}
	if opts.FuzzyThreshold <= 0 || opts.FuzzyThreshold > 1 {
		opts.FuzzyThreshold = d.FuzzyThreshold
	}
	if opts.MinFuzzyLength < 1 {
		opts.MinFuzzyLength = d.MinFuzzyLength
	}
	if opts.QualityWeight < 0 || opts.FrequencyWeight < 0 || opts.QualityWeight+opts.FrequencyWeight >= 1 {
		opts.QualityWeight, opts.FrequencyWeight = d.QualityWeight, d.FrequencyWeight
	}
	return &Engine{opts: opts}
}

// Mode reports the configured match mode.
func (e *Engine) Mode() Mode { return e.opts.Mode }

// Query is one suggest request.
type Query struct {
	Partial string
	// Library restricts candidates by affinity, case-insensitively.
	Library string
	// MaxResults truncates the list. Zero or negative returns everything.
	MaxResults int
}

// Suggest returns vocabulary entries matching q.Partial, best first.
// Candidates that match in no way are left out. An empty partial or an
// empty model yields an empty list.
func (e *Engine) Suggest(m *model.Model, q Query) []models.Suggestion {
	out := []models.Suggestion{}
	partial := strings.ToLower(strings.TrimSpace(q.Partial))
	if partial == "" || m == nil || m.Empty() {
		return out
	}
	maxFreq := math.Log1p(float64(m.MaxCount()))
	partialLen := utf8.RuneCountInString(partial)

	m.EachKeyword(func(name string, count int64) bool {
		lib := m.Affinity(name)
		if q.Library != "" && (lib == "" || !strings.EqualFold(lib, q.Library)) {
			return true
		}
		tier, quality, match, ok := e.match(partial, partialLen, strings.ToLower(name))
		if !ok {
			return true
		}
		freq := 0.0
		if maxFreq > 0 {
			freq = math.Log1p(float64(count)) / maxFreq
		}
		out = append(out, models.Suggestion{
			Keyword:    name,
			Library:    lib,
			UsageCount: count,
			Score:      tier + e.opts.QualityWeight*quality + e.opts.FrequencyWeight*freq,
			Match:      match,
		})
		return true
	})

	slices.SortFunc(out, func(a, b models.Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.UsageCount, a.UsageCount); c != 0 {
			return c
		}
		return cmp.Compare(a.Keyword, b.Keyword)
	})
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out
}

// match classifies how partial matches name. Both are lower-cased.
// Quality is in [0, 1].
func (e *Engine) match(partial string, partialLen int, name string) (tier, quality float64, kind string, ok bool) {
	nameLen := utf8.RuneCountInString(name)
	coverage := float64(partialLen) / float64(max(nameLen, 1))
	switch {
	case strings.HasPrefix(name, partial):
		return tierPrefix, coverage, models.MatchPrefix, true
	case e.opts.Mode == ModePrefix:
		return 0, 0, "", false
	case strings.Contains(name, partial):
		return tierSubstring, coverage, models.MatchSubstring, true
	case e.opts.Mode == ModeSubstring || partialLen < e.opts.MinFuzzyLength:
		return 0, 0, "", false
	}
	sim := Similarity(partial, name)
	if nameLen > partialLen {
		sim = max(sim, Similarity(partial, string([]rune(name)[:partialLen])))
	}
	if sim <= e.opts.FuzzyThreshold {
		return 0, 0, "", false
	}
	return tierFuzzy, sim, models.MatchFuzzy, true
}

// Similarity is 1 - Levenshtein(a, b) / max(len(a), len(b)) over runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// Levenshtein returns the edit distance between a and b in runes.
func Levenshtein(a, b string) int {
	return levenshtein([]rune(a), []rune(b))
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(a) < len(b) {
		a, b = b, a
	}

	// two rows, O(min(m,n)) space
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
