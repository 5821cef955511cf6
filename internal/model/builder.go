package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"kwrec/internal/models"
)

// ErrOrderMismatch is returned when merging models of different orders.
var ErrOrderMismatch = errors.New("model: order mismatch")

// BuildOptions controls how sequences are counted.
type BuildOptions struct {
	// Order is K, the longest context length. Values outside 1..MaxOrder
	// are clamped.
	Order int
	// MaxDepth drops events nested deeper than this. Negative keeps all.
	MaxDepth int
	// DefaultLibrary is credited for events that carry no library, so such
	// keywords can pass a library filter. Empty leaves them unattributed.
	DefaultLibrary string
}

// DefaultBuildOptions returns order 2 with no depth limit.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{Order: DefaultOrder, MaxDepth: -1}
}

func (o BuildOptions) normalized() BuildOptions {
	switch {
	case o.Order < 1:
		o.Order = DefaultOrder
	case o.Order > MaxOrder:
		o.Order = MaxOrder
	}
	return o
}

// Build counts every sequence of the corpus into a new model. Sequences are
// independent: no transition spans two of them.
func Build(corpus [][]models.KeywordEvent, opts BuildOptions) *Model {
	opts = opts.normalized()
	acc := newCounter(opts.Order)
	for _, seq := range corpus {
		acc.addSequence(seq, opts)
	}
	return acc.freeze(uuid.New(), time.Now().UTC())
}

// Merge combines models trained on disjoint data. Every count is the sum of
// the inputs' counts; library pairs keep the order in which the inputs
// first saw them. Merging no models yields an empty order-2 model.
func Merge(parts ...*Model) (*Model, error) {
	order := DefaultOrder
	if len(parts) > 0 {
		order = parts[0].order
	}
	acc := newCounter(order)
	for _, p := range parts {
		if p.order != order {
			return nil, fmt.Errorf("%w: %d and %d", ErrOrderMismatch, order, p.order)
		}
		acc.addModel(p)
	}
	return acc.freeze(uuid.New(), time.Now().UTC()), nil
}

// counter is the mutable accumulator behind Build, Merge and Deserialize.
type counter struct {
	order       int
	traces      int
	unigrams    map[string]int64
	libraries   map[string]*libraryTally
	transitions []map[string]*pendingTable
}

// pendingTable accumulates the successors of one context.
type pendingTable struct {
	context []string
	next    map[string]int64
}

func newCounter(order int) *counter {
	c := &counter{
		order:       order,
		unigrams:    make(map[string]int64),
		libraries:   make(map[string]*libraryTally),
		transitions: make([]map[string]*pendingTable, order),
	}
	for k := range c.transitions {
		c.transitions[k] = make(map[string]*pendingTable)
	}
	return c
}

func (c *counter) addLibrary(name, library string, n int64) {
	if library == "" {
		return
	}
	t, ok := c.libraries[name]
	if !ok {
		t = &libraryTally{}
		c.libraries[name] = t
	}
	t.add(library, n)
}

func (c *counter) addTransition(context []string, next string, n int64) {
	tbl := c.transitions[len(context)-1]
	key := ContextKey(context...)
	row, ok := tbl[key]
	if !ok {
		row = &pendingTable{context: slices.Clone(context), next: make(map[string]int64)}
		tbl[key] = row
	}
	row.next[next] += n
}

func (c *counter) addSequence(seq []models.KeywordEvent, opts BuildOptions) {
	events := seq
	if !slices.IsSortedFunc(events, bySequenceIndex) {
		events = slices.Clone(seq)
		slices.SortStableFunc(events, bySequenceIndex)
	}

	names := make([]string, 0, len(events))
	for i := range events {
		ev := &events[i]
		if ev.Name == "" || (opts.MaxDepth >= 0 && ev.Depth > opts.MaxDepth) {
			continue
		}
		library := ev.Library
		if library == "" {
			library = opts.DefaultLibrary
		}
		names = append(names, ev.Name)
		c.unigrams[ev.Name]++
		c.addLibrary(ev.Name, library, 1)
	}
	c.traces++

	for i := 1; i < len(names); i++ {
		for k := 1; k <= c.order && k <= i; k++ {
			c.addTransition(names[i-k:i], names[i], 1)
		}
	}
}

func bySequenceIndex(a, b models.KeywordEvent) int {
	return cmp.Compare(a.SequenceIndex, b.SequenceIndex)
}

func (c *counter) addModel(m *Model) {
	c.traces += m.traces
	for name, n := range m.unigrams {
		c.unigrams[name] += n
	}
	// Library tallies are merged in sorted keyword order so the result does
	// not depend on map iteration.
	for _, name := range m.vocabulary {
		t, ok := m.libraries[name]
		if !ok {
			continue
		}
		for i, lib := range t.names {
			c.addLibrary(name, lib, t.counts[i])
		}
	}
	for _, tables := range m.transitions {
		for _, t := range tables {
			for _, kc := range t.ranked {
				c.addTransition(t.context, kc.Keyword, kc.Count)
			}
		}
	}
}

func (c *counter) freeze(id uuid.UUID, builtAt time.Time) *Model {
	m := &Model{
		id:           id,
		builtAt:      builtAt,
		order:        c.order,
		traces:       c.traces,
		unigrams:     make(map[string]int64, len(c.unigrams)),
		libraries:    make(map[string]*libraryTally, len(c.libraries)),
		affinity:     make(map[string]string, len(c.libraries)),
		libraryVocab: make(map[string][]models.KeywordCount),
		transitions:  make([]map[string]*table, c.order),
	}

	m.vocabulary = make([]string, 0, len(c.unigrams))
	for name, n := range c.unigrams {
		m.vocabulary = append(m.vocabulary, name)
		m.unigrams[name] = n
		m.events += n
		m.maxCount = max(m.maxCount, n)
	}
	slices.Sort(m.vocabulary)

	for name, t := range c.libraries {
		frozen := &libraryTally{names: slices.Clone(t.names), counts: slices.Clone(t.counts)}
		m.libraries[name] = frozen
		m.affinity[name] = frozen.best()
		for i, lib := range frozen.names {
			m.libraryVocab[lib] = append(m.libraryVocab[lib], models.KeywordCount{Keyword: name, Count: frozen.counts[i]})
		}
	}
	for lib, kws := range m.libraryVocab {
		slices.SortFunc(kws, byCountDesc)
		m.libraryNames = append(m.libraryNames, lib)
	}
	slices.Sort(m.libraryNames)

	for k, tables := range c.transitions {
		frozen := make(map[string]*table, len(tables))
		for key, row := range tables {
			t := &table{context: row.context, ranked: make([]models.KeywordCount, 0, len(row.next))}
			for next, n := range row.next {
				t.ranked = append(t.ranked, models.KeywordCount{Keyword: next, Count: n})
				t.total += n
			}
			slices.SortFunc(t.ranked, byCountDesc)
			frozen[key] = t
		}
		m.transitions[k] = frozen
	}
	return m
}

func byCountDesc(a, b models.KeywordCount) int {
	if c := cmp.Compare(b.Count, a.Count); c != 0 {
		return c
	}
	return cmp.Compare(a.Keyword, b.Keyword)
}
