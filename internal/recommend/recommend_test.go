package recommend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

func trace(names ...string) []models.KeywordEvent {
	events := make([]models.KeywordEvent, len(names))
	for i, n := range names {
		lib := ""
		if j := strings.LastIndex(n, "."); j > 0 {
			lib, n = n[:j], n[j+1:]
		}
		events[i] = models.KeywordEvent{Name: n, Library: lib, SequenceIndex: i + 1}
	}
	return events
}

func build(order int, traces ...[]models.KeywordEvent) *model.Model {
	return model.Build(traces, model.BuildOptions{Order: order, MaxDepth: -1})
}

func keywords(items []models.Recommendation) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Keyword
	}
	return out
}

func TestRecommend_Order1Confidence(t *testing.T) {
	m := build(1, trace("A", "B", "A", "B", "A", "C"))
	res := New(DefaultOptions()).Recommend(m, Query{Context: []string{"A"}})

	require.Equal(t, []string{"B", "C"}, keywords(res.Items))
	assert.InDelta(t, 2.0/3.0, res.Items[0].Confidence, 1e-9)
	assert.InDelta(t, 1.0/3.0, res.Items[1].Confidence, 1e-9)
	assert.Equal(t, int64(2), res.Items[0].UsageCount)
	assert.Equal(t, 1, res.Order)
	assert.Equal(t, "order_1", res.Outcome)
	assert.Equal(t, "A", res.Items[0].Context)
}

func TestRecommend_PrefersLongestObservedContext(t *testing.T) {
	m := build(2,
		trace("Open", "Login", "Check"),
		trace("Open", "Login", "Check"),
		trace("Close", "Login", "Logout"),
		trace("Close", "Login", "Logout"),
		trace("Close", "Login", "Logout"),
	)
	e := New(DefaultOptions())

	res := e.Recommend(m, Query{Context: []string{"Open", "Login"}})
	assert.Equal(t, 2, res.Order)
	assert.Equal(t, []string{"Check"}, keywords(res.Items), "order-1 candidates are not mixed in")
	assert.InDelta(t, 1.0, res.Items[0].Confidence, 1e-9)
	assert.Equal(t, "Open > Login", res.Items[0].Context)
}

func TestRecommend_Backoff(t *testing.T) {
	m := build(2, trace("A", "B"), trace("C", "D"))
	e := New(DefaultOptions())

	// (C, A) never seen together, A seen alone.
	res := e.Recommend(m, Query{Context: []string{"C", "A"}})
	assert.Equal(t, 1, res.Order)
	assert.Equal(t, []string{"B"}, keywords(res.Items))
	assert.InDelta(t, 0.5, res.Items[0].Confidence, 1e-9, "one level of backoff is discounted once")

	// D has no successors and Unknown is not in the vocabulary.
	for _, ctx := range [][]string{{"D"}, {"Unknown"}, {"Unknown", "D"}, nil} {
		res = e.Recommend(m, Query{Context: ctx})
		assert.Equal(t, models.OutcomeUnigram, res.Outcome, "context %v", ctx)
		assert.Len(t, res.Items, 4)
		assert.InDelta(t, 0.25*0.25, res.Items[0].Confidence, 1e-9)
	}
}

func TestRecommend_DeepMatchOutranksShallow(t *testing.T) {
	m := build(2, trace("X", "A", "B"), trace("A", "C"), trace("A", "C"), trace("A", "C"))
	e := New(DefaultOptions())

	deep := e.Recommend(m, Query{Context: []string{"X", "A"}})
	shallow := e.Recommend(m, Query{Context: []string{"Y", "A"}})
	require.NotEmpty(t, deep.Items)
	require.NotEmpty(t, shallow.Items)
	assert.Greater(t, deep.Items[0].Confidence, shallow.Items[0].Confidence)
}

func TestRecommend_LibraryFilter(t *testing.T) {
	m := build(1,
		trace("Start", "BuiltIn.Log", "Start", "SeleniumLibrary.Click", "Start", "Plain"),
		trace("Start", "BuiltIn.Log"),
	)
	e := New(DefaultOptions())

	res := e.Recommend(m, Query{Context: []string{"Start"}, Library: "builtin"})
	require.Equal(t, []string{"Log"}, keywords(res.Items))
	assert.Equal(t, "BuiltIn", res.Items[0].Library)
	assert.InDelta(t, 2.0/4.0, res.Items[0].Confidence, 1e-9, "confidence is not renormalized")

	res = e.Recommend(m, Query{Context: []string{"Nothing"}, Library: "BuiltIn"})
	for _, it := range res.Items {
		assert.Equal(t, "BuiltIn", it.Library)
	}

	res = e.Recommend(m, Query{Context: []string{"Start"}, Library: "Nope"})
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
}

func TestRecommend_LibraryFilterMatchesDefaultLibrary(t *testing.T) {
	m := model.Build([][]models.KeywordEvent{trace("Start", "Log", "Start", "Browser.Click")},
		model.BuildOptions{Order: 1, MaxDepth: -1, DefaultLibrary: "BuiltIn"})

	res := New(DefaultOptions()).Recommend(m, Query{Context: []string{"Start"}, Library: "BuiltIn"})
	require.Equal(t, []string{"Log"}, keywords(res.Items))
	assert.Equal(t, "BuiltIn", res.Items[0].Library)
}

func TestRecommend_TieBreaksAndTruncation(t *testing.T) {
	m := build(1, trace("S", "b"), trace("S", "a"), trace("S", "c"), trace("c", "x"))
	e := New(DefaultOptions())

	res := e.Recommend(m, Query{Context: []string{"S"}})
	// equal confidence and usage: alphabetical
	assert.Equal(t, []string{"a", "b", "c"}, keywords(res.Items))

	res = e.Recommend(m, Query{Context: []string{"S"}, MaxResults: 2})
	assert.Equal(t, []string{"a", "b"}, keywords(res.Items))

	res = e.Recommend(m, Query{Context: []string{"S"}, MaxResults: 0})
	assert.Len(t, res.Items, 3)
}

func TestRecommend_NextKeywords(t *testing.T) {
	m := build(1, trace("A", "B", "C"), trace("A", "B", "D"), trace("B", "C"))
	res := New(DefaultOptions()).Recommend(m, Query{Context: []string{"A"}})

	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"C", "D"}, res.Items[0].NextKeywords)
}

func TestRecommend_EmptyModel(t *testing.T) {
	e := New(DefaultOptions())
	for _, m := range []*model.Model{nil, build(2)} {
		res := e.Recommend(m, Query{Context: []string{"A"}})
		assert.Empty(t, res.Items)
		assert.NotNil(t, res.Items)
		assert.Equal(t, models.OutcomeEmpty, res.Outcome)
	}
}

func TestNew_InvalidDiscount(t *testing.T) {
	for _, d := range []float64{0, -1, 1.5} {
		assert.Equal(t, DefaultBackoffDiscount, New(Options{BackoffDiscount: d}).discount)
	}
	assert.Equal(t, 1.0, New(Options{BackoffDiscount: 1}).discount)
}

func TestPopular(t *testing.T) {
	m := build(1, trace("BuiltIn.Log", "BuiltIn.Log", "X.Click", "Plain", "BuiltIn.Sleep"))

	got := Popular(m, "", 2)
	require.Len(t, got, 2)
	assert.Equal(t, models.PopularKeyword{Keyword: "Log", Library: "BuiltIn", Frequency: 2}, got[0])
	assert.Equal(t, "Click", got[1].Keyword)

	got = Popular(m, "BuiltIn", 0)
	assert.Equal(t, []models.PopularKeyword{
		{Keyword: "Log", Library: "BuiltIn", Frequency: 2},
		{Keyword: "Sleep", Library: "BuiltIn", Frequency: 1},
	}, got)

	assert.Empty(t, Popular(nil, "", 5))
}

func TestLibraries(t *testing.T) {
	m := build(1, trace("BuiltIn.Log", "BuiltIn.Log", "BuiltIn.Sleep", "X.Click", "Plain"))

	got := Libraries(m)
	require.Len(t, got, 2)
	assert.Equal(t, "BuiltIn", got[0].Library)
	assert.Equal(t, 2, got[0].KeywordCount)
	assert.Equal(t, int64(3), got[0].TotalUsage)
	assert.Equal(t, []models.KeywordCount{{Keyword: "Log", Count: 2}, {Keyword: "Sleep", Count: 1}}, got[0].TopKeywords)
	assert.Equal(t, "X", got[1].Library)
}
