// Package model holds the trained keyword model: unigram frequencies,
// library affinities and multi-order transition tables.
//
// A Model is immutable once built. Every accessor returns copies, so a
// model may be shared by any number of concurrent readers.
package model

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"kwrec/internal/models"
)

// Order limits
const (
	DefaultOrder = 2
	MaxOrder     = 5
)

// ContextKey returns the transition table key for an ordered context. Each
// name is length-prefixed, so two different contexts never share a key
// whatever bytes their names contain.
func ContextKey(names ...string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(strconv.Itoa(len(n)))
		b.WriteByte(':')
		b.WriteString(n)
	}
	return b.String()
}

// Model is a trained, immutable keyword model.
type Model struct {
	id      uuid.UUID
	builtAt time.Time
	order   int
	traces  int
	events  int64

	vocabulary []string
	unigrams   map[string]int64
	maxCount   int64

	libraries    map[string]*libraryTally
	affinity     map[string]string
	libraryVocab map[string][]models.KeywordCount
	libraryNames []string

	// transitions[k-1] maps a context key of k names to its successors.
	transitions []map[string]*table
}

// table is the frozen successor distribution of one context.
type table struct {
	context []string
	ranked  []models.KeywordCount
	total  int64
}

// libraryTally keeps (library, count) pairs in first-seen order.
type libraryTally struct {
	names  []string
	counts []int64
}

func (t *libraryTally) add(library string, n int64) {
	for i, name := range t.names {
		if name == library {
			t.counts[i] += n
			return
		}
	}
	t.names = append(t.names, library)
	t.counts = append(t.counts, n)
}

// best returns the library with the highest count; ties go to the first seen.
func (t *libraryTally) best() string {
	best := -1
	for i := range t.names {
		if best < 0 || t.counts[i] > t.counts[best] {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return t.names[best]
}

// ID identifies this model instance.
func (m *Model) ID() uuid.UUID { return m.id }

// BuiltAt is when the model was built or merged.
func (m *Model) BuiltAt() time.Time { return m.builtAt }

// Order is K, the longest context length with a transition table.
func (m *Model) Order() int { return m.order }

// Traces is the number of sequences folded into the model.
func (m *Model) Traces() int { return m.traces }

// Events is the number of counted events, equal to the sum of unigram counts.
func (m *Model) Events() int64 { return m.events }

// Size is the vocabulary size.
func (m *Model) Size() int { return len(m.vocabulary) }

// Empty reports whether the model has no vocabulary.
func (m *Model) Empty() bool { return len(m.vocabulary) == 0 }

// Vocabulary returns the distinct keyword names in sorted order.
func (m *Model) Vocabulary() []string {
	return slices.Clone(m.vocabulary)
}

// Count returns the unigram count of a keyword, zero when unknown.
func (m *Model) Count(name string) int64 {
	return m.unigrams[name]
}

// Known reports whether name is in the vocabulary.
func (m *Model) Known(name string) bool {
	_, ok := m.unigrams[name]
	return ok
}

// MaxCount is the largest unigram count in the model.
func (m *Model) MaxCount() int64 { return m.maxCount }

// Affinity returns the library most often seen with the keyword, or "" when
// the keyword was never seen with a library.
func (m *Model) Affinity(name string) string {
	return m.affinity[name]
}

// Libraries returns all library names in sorted order.
func (m *Model) Libraries() []string {
	return slices.Clone(m.libraryNames)
}

// LibraryKeywords returns the keywords seen with a library, by descending
// co-occurrence count, ties alphabetical.
func (m *Model) LibraryKeywords(library string) []models.KeywordCount {
	return slices.Clone(m.libraryVocab[library])
}

// Next returns the successors observed immediately after context, ranked by
// descending count then name, together with their total count. The context
// length selects the table order; unknown contexts yield nil.
func (m *Model) Next(context []string) ([]models.KeywordCount, int64) {
	k := len(context)
	if k < 1 || k > m.order {
		return nil, 0
	}
	t, ok := m.transitions[k-1][ContextKey(context...)]
	if !ok {
		return nil, 0
	}
	return slices.Clone(t.ranked), t.total
}

// Contexts returns how many distinct contexts of length k have successors.
func (m *Model) Contexts(k int) int {
	if k < 1 || k > m.order {
		return 0
	}
	return len(m.transitions[k-1])
}

// EachKeyword calls fn for every vocabulary entry in sorted order until fn
// returns false.
func (m *Model) EachKeyword(fn func(name string, count int64) bool) {
	for _, name := range m.vocabulary {
		if !fn(name, m.unigrams[name]) {
			return
		}
	}
}

// Tables is a detached copy of the model's raw counts.
type Tables struct {
	Unigrams map[string]int64
	// Transitions[k-1] maps ContextKey(context...) to next-keyword counts.
	Transitions []map[string]map[string]int64
	// Libraries maps keyword to library co-occurrence counts.
	Libraries map[string]map[string]int64
}

// Tables returns a deep copy of the counts.
func (m *Model) Tables() Tables {
	out := Tables{
		Unigrams:    make(map[string]int64, len(m.unigrams)),
		Transitions: make([]map[string]map[string]int64, m.order),
		Libraries:   make(map[string]map[string]int64, len(m.libraries)),
	}
	for name, n := range m.unigrams {
		out.Unigrams[name] = n
	}
	for k, tables := range m.transitions {
		out.Transitions[k] = make(map[string]map[string]int64, len(tables))
		for key, t := range tables {
			next := make(map[string]int64, len(t.ranked))
			for _, kc := range t.ranked {
				next[kc.Keyword] = kc.Count
			}
			out.Transitions[k][key] = next
		}
	}
	for name, tally := range m.libraries {
		libs := make(map[string]int64, len(tally.names))
		for i, lib := range tally.names {
			libs[lib] = tally.counts[i]
		}
		out.Libraries[name] = libs
	}
	return out
}

// Info summarises the model for status endpoints.
func (m *Model) Info() models.ModelInfo {
	return models.ModelInfo{
		ID:             m.id,
		Order:          m.order,
		BuiltAt:        m.builtAt,
		Traces:         m.traces,
		Events:         m.events,
		VocabularySize: len(m.vocabulary),
		Libraries:      len(m.libraryNames),
	}
}
