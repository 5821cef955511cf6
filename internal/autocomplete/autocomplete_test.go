package autocomplete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

type kw struct {
	name, lib string
	uses      int
}

func vocab(entries ...kw) *model.Model {
	var events []models.KeywordEvent
	for _, e := range entries {
		for range e.uses {
			events = append(events, models.KeywordEvent{Name: e.name, Library: e.lib, SequenceIndex: len(events) + 1})
		}
	}
	return model.Build([][]models.KeywordEvent{events}, model.DefaultBuildOptions())
}

func names(items []models.Suggestion) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Keyword
	}
	return out
}

func TestSuggest_PrefixBeforeSubstring(t *testing.T) {
	m := vocab(
		kw{"Login System", "", 1},
		kw{"Log Out", "", 1},
		kw{"Close Browser", "", 50},
	)

	got := New(DefaultOptions()).Suggest(m, Query{Partial: "Lo"})
	require.Equal(t, []string{"Log Out", "Login System", "Close Browser"}, names(got))
	assert.Equal(t, models.MatchPrefix, got[0].Match)
	assert.Equal(t, models.MatchSubstring, got[2].Match)

	strict := New(Options{Mode: ModePrefix}).Suggest(m, Query{Partial: "Lo"})
	assert.Equal(t, []string{"Log Out", "Login System"}, names(strict))
}

func TestSuggest_CaseInsensitive(t *testing.T) {
	m := vocab(kw{"Open Browser", "SeleniumLibrary", 2})
	got := New(DefaultOptions()).Suggest(m, Query{Partial: "oPEN b"})
	require.Len(t, got, 1)
	assert.Equal(t, "Open Browser", got[0].Keyword)
	assert.Equal(t, "SeleniumLibrary", got[0].Library)
	assert.Equal(t, int64(2), got[0].UsageCount)
}

func TestSuggest_Fuzzy(t *testing.T) {
	m := vocab(kw{"Click Button", "", 1}, kw{"Wait Until", "", 1})
	e := New(DefaultOptions())

	got := e.Suggest(m, Query{Partial: "clik butt"})
	require.Equal(t, []string{"Click Button"}, names(got))
	assert.Equal(t, models.MatchFuzzy, got[0].Match)
	assert.Less(t, got[0].Score, 1.0)

	assert.Empty(t, e.Suggest(m, Query{Partial: "zzzzzz"}))
	assert.Empty(t, e.Suggest(m, Query{Partial: "cx"}), "short partials never fuzzy match")
	assert.Empty(t, New(Options{Mode: ModeSubstring}).Suggest(m, Query{Partial: "clik butt"}))
}

func TestSuggest_FuzzyMustExceedThreshold(t *testing.T) {
	m := vocab(kw{"Click", "", 1})
	opts := DefaultOptions()

	opts.FuzzyThreshold = Similarity("clikc", "click")
	assert.Empty(t, New(opts).Suggest(m, Query{Partial: "clikc"}), "a similarity equal to the threshold is rejected")

	opts.FuzzyThreshold -= 0.01
	got := New(opts).Suggest(m, Query{Partial: "clikc"})
	require.Equal(t, []string{"Click"}, names(got))
	assert.Equal(t, models.MatchFuzzy, got[0].Match)
}

func TestSuggest_FrequencyCannotBeatBetterTier(t *testing.T) {
	m := vocab(kw{"Get Text", "", 1}, kw{"Target Get", "", 10000})
	got := New(DefaultOptions()).Suggest(m, Query{Partial: "get"})
	assert.Equal(t, []string{"Get Text", "Target Get"}, names(got))
}

func TestSuggest_FrequencyBreaksEqualMatches(t *testing.T) {
	m := vocab(kw{"Log A", "", 1}, kw{"Log B", "", 9})
	got := New(DefaultOptions()).Suggest(m, Query{Partial: "log"})
	assert.Equal(t, []string{"Log B", "Log A"}, names(got))
}

func TestSuggest_LibraryFilterAndLimit(t *testing.T) {
	m := vocab(
		kw{"Log", "BuiltIn", 3},
		kw{"Log Many", "BuiltIn", 2},
		kw{"Log Source", "SeleniumLibrary", 5},
		kw{"Logout", "", 1},
	)
	e := New(DefaultOptions())

	got := e.Suggest(m, Query{Partial: "log", Library: "BuiltIn"})
	assert.Equal(t, []string{"Log", "Log Many"}, names(got))

	got = e.Suggest(m, Query{Partial: "log", MaxResults: 2})
	assert.Len(t, got, 2)
}

func TestSuggest_Empty(t *testing.T) {
	e := New(DefaultOptions())
	assert.Empty(t, e.Suggest(vocab(kw{"Log", "", 1}), Query{Partial: "  "}))
	assert.Empty(t, e.Suggest(model.Build(nil, model.DefaultBuildOptions()), Query{Partial: "log"}))
	assert.NotNil(t, e.Suggest(nil, Query{Partial: "log"}))
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeFuzzy, "FUZZY": ModeFuzzy, "substring": ModeSubstring, " prefix ": ModePrefix} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("regex")
	assert.Error(t, err)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"click", "clikc", 2},
		{"über", "uber", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
		assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a))
	}
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 0.6, Similarity("click", "clikc"), 1e-9)
}
