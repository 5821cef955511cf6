package trace

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kwrec/internal/models"
)

func extractFixture(t *testing.T, name string, opts Options) []models.KeywordEvent {
	t.Helper()
	events, err := NewExtractor(opts, nil).ExtractFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return events
}

func names(events []models.KeywordEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Name
	}
	return out
}

func assertContiguous(t *testing.T, events []models.KeywordEvent) {
	t.Helper()
	for i, ev := range events {
		assert.Equal(t, i+1, ev.SequenceIndex, "event %q", ev.Name)
	}
}

func TestExtract_RF6Output(t *testing.T) {
	events := extractFixture(t, "rf6_output.xml", DefaultOptions())

	require.Equal(t, []string{
		"Open Browser", "Login As", "Input Text", "Click Button", "Get Title", "Close Browser",
	}, names(events))
	assertContiguous(t, events)

	setup := events[0]
	assert.Equal(t, models.KindSetup, setup.Kind)
	assert.Equal(t, "SeleniumLibrary", setup.Library)
	assert.Equal(t, 0, setup.Depth)
	assert.Equal(t, "Login", setup.ParentName)
	assert.Equal(t, "Shop.Login", setup.SuiteName)
	assert.Empty(t, setup.TestName)
	assert.Equal(t, []string{"https://shop.example", "chrome"}, setup.Arguments)
	assert.Equal(t, models.StatusPass, setup.Status)
	require.NotNil(t, setup.StartTime)
	assert.Equal(t, 1500*time.Millisecond, setup.Duration())

	loginAs := events[1]
	assert.Equal(t, models.KindKeyword, loginAs.Kind)
	assert.Empty(t, loginAs.Library)
	assert.Equal(t, "Valid Login", loginAs.ParentName)
	assert.Equal(t, "Valid Login", loginAs.TestName)

	input := events[2]
	assert.Equal(t, 1, input.Depth)
	assert.Equal(t, "Login As", input.ParentName)
	assert.Equal(t, []string{"id=user", "alice"}, input.Arguments)

	title := events[4]
	assert.Equal(t, 0, title.Depth)
	assert.Equal(t, []string{"${title}"}, title.ReturnValues)
	assert.Equal(t, models.StatusFail, title.Status)

	teardown := events[5]
	assert.Equal(t, models.KindTeardown, teardown.Kind)
	assert.Equal(t, "Login", teardown.ParentName)
}

func TestExtract_RF7Output(t *testing.T) {
	events := extractFixture(t, "rf7_output.xml", DefaultOptions())

	require.Equal(t, []string{
		"Create Session", "POST On Session", "Log", "Log", "Should Be Equal As Integers", "Delete All Sessions",
	}, names(events))
	assertContiguous(t, events)

	assert.Equal(t, models.KindSetup, events[0].Kind)
	assert.Equal(t, "RequestsLibrary", events[0].Library)
	assert.Equal(t, 250*time.Millisecond, events[0].Duration())
	assert.Equal(t, "Create Item", events[0].TestName)

	assert.Equal(t, []string{"${resp}"}, events[1].ReturnValues)
	assert.Equal(t, []string{"api", "/items"}, events[1].Arguments)

	// FOR and ITER are transparent: loop bodies stay at the test's depth.
	for _, ev := range events[2:4] {
		assert.Equal(t, "BuiltIn", ev.Library)
		assert.Equal(t, 0, ev.Depth)
		assert.Equal(t, "Create Item", ev.ParentName)
		assert.Equal(t, []string{"${i}"}, ev.Arguments)
		assert.Empty(t, ev.ReturnValues)
	}

	assert.Equal(t, models.StatusSkip, events[4].Status)
	assert.Equal(t, models.KindTeardown, events[5].Kind)
}

func TestExtract_RF3Output(t *testing.T) {
	events := extractFixture(t, "rf3_output.xml", DefaultOptions())

	require.Equal(t, []string{"Set Variable", "Log", "No Operation"}, names(events))
	assertContiguous(t, events)

	assert.Equal(t, "BuiltIn", events[0].Library)
	assert.Equal(t, []string{"start"}, events[0].Arguments)
	assert.Equal(t, []string{"${state}"}, events[0].ReturnValues)

	assert.Equal(t, "BuiltIn", events[1].Library)
	assert.Equal(t, 0, events[1].Depth)

	// The unnamed keyword is skipped but its children are kept.
	assert.Equal(t, 0, events[2].Depth)
	assert.Equal(t, "Loop", events[2].ParentName)
	assert.Nil(t, events[2].StartTime)
	assert.Nil(t, events[2].EndTime)
}

func TestExtract_ExcludeSetupTeardown(t *testing.T) {
	events := extractFixture(t, "rf7_output.xml", Options{IncludeSetupTeardown: false})

	require.Equal(t, []string{
		"POST On Session", "Log", "Log", "Should Be Equal As Integers",
	}, names(events))
	assertContiguous(t, events)
}

func TestExtract_JSONResult(t *testing.T) {
	events := extractFixture(t, "output.json", DefaultOptions())

	require.Equal(t, []string{
		"Create Session", "POST On Session", "Log", "Should Be True", "Delete All Sessions",
	}, names(events))
	assertContiguous(t, events)

	assert.Equal(t, models.KindSetup, events[0].Kind)
	assert.Equal(t, "Api", events[0].ParentName)
	assert.Empty(t, events[0].TestName)
	assert.Equal(t, 250*time.Millisecond, events[0].Duration())

	assert.Equal(t, []string{"${resp}"}, events[1].ReturnValues)
	assert.Equal(t, 0, events[2].Depth)
	assert.Equal(t, []string{"a"}, events[2].Arguments)

	assert.Equal(t, "BuiltIn", events[3].Library)
	assert.Equal(t, []string{"true"}, events[3].Arguments)
	assert.Equal(t, models.StatusFail, events[3].Status)

	assert.Equal(t, models.KindTeardown, events[4].Kind)
}

func TestExtract_LegacyJSON(t *testing.T) {
	events := extractFixture(t, "log_data.json", DefaultOptions())

	require.Equal(t, []string{
		"Open Application", "Tap", "Wait Until Element Is Visible", "Close Application",
	}, names(events))
	assertContiguous(t, events)

	assert.Equal(t, "AppiumLibrary", events[0].Library)
	assert.Equal(t, []string{"http://device"}, events[0].Arguments)
	assert.Equal(t, time.Second, events[0].Duration())
	assert.Equal(t, "Legacy", events[0].SuiteName)

	assert.Equal(t, 1, events[2].Depth)
	assert.Equal(t, "Tap", events[2].ParentName)
	assert.Equal(t, models.StatusUnknown, events[2].Status)

	assert.Equal(t, models.KindTeardown, events[3].Kind)
	assert.Equal(t, "Second", events[3].TestName)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty document", "  \n", "empty trace"},
		{"unparsable markup", "<robot><suite name=\"x\"></robot>", "unparsable markup"},
		{"missing robot root", "<testsuite><testcase/></testsuite>", "missing <robot> root element"},
		{"unparsable json", "{\"suite\": [", "unparsable JSON trace"},
		{"json without suite", "{\"generator\": \"Robot\"}", "missing suite root structure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Extract([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, events)

			var extractErr *ExtractionError
			require.True(t, errors.As(err, &extractErr))
			assert.Equal(t, tt.reason, extractErr.Reason)
		})
	}
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := NewExtractor(DefaultOptions(), nil).ExtractFile(filepath.Join(t.TempDir(), "missing.xml"))

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "missing.xml", extractErr.Source)
}

func TestExtract_EmptySuite(t *testing.T) {
	events, err := Extract([]byte(`<robot><suite name="Empty"/></robot>`))
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		name        string
		keyword     string
		library     string
		wantKeyword string
		wantLibrary string
	}{
		{"explicit library", "Log", "BuiltIn", "Log", "BuiltIn"},
		{"qualified name", "SeleniumLibrary.Open Browser", "", "Open Browser", "SeleniumLibrary"},
		{"dotted library", "my.resource.Login User", "", "Login User", "my.resource"},
		{"qualified with explicit library", "BuiltIn.Log", "BuiltIn", "Log", "BuiltIn"},
		{"free text dot", "Wait 1.5 Seconds", "", "Wait 1.5 Seconds", ""},
		{"trailing dot", "Done.", "", "Done.", ""},
		{"leading dot", ".hidden", "", ".hidden", ""},
		{"plain", "Login User", "", "Login User", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw, lib := splitQualified(tt.keyword, tt.library)
			assert.Equal(t, tt.wantKeyword, kw)
			assert.Equal(t, tt.wantLibrary, lib)
		})
	}
}
