package models

import (
	"strings"
	"time"
)

// Kind classifies a node of an execution trace.
type Kind string

// Trace node kinds
const (
	KindKeyword  Kind = "keyword"
	KindSetup    Kind = "setup"
	KindTeardown Kind = "teardown"
	KindTest     Kind = "test"
	KindSuite    Kind = "suite"
)

// Status is the recorded outcome of a keyword invocation.
type Status string

// Keyword status constants
const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusSkip    Status = "SKIP"
	StatusUnknown Status = "UNKNOWN"
)

// ParseStatus maps a trace status string to a Status, case-insensitively.
// Anything unrecognised (including "NOT RUN") is StatusUnknown.
func ParseStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return StatusPass
	case "FAIL":
		return StatusFail
	case "SKIP":
		return StatusSkip
	default:
		return StatusUnknown
	}
}

// KeywordEvent is one keyword invocation in a flattened trace.
type KeywordEvent struct {
	Name          string     `json:"name"`
	Library       string     `json:"library,omitempty"`
	Kind          Kind       `json:"kind"`
	Depth         int        `json:"depth"`
	ParentName    string     `json:"parent_name,omitempty"`
	TestName      string     `json:"test_name,omitempty"`
	SuiteName     string     `json:"suite_name,omitempty"`
	Status        Status     `json:"status"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Arguments     []string   `json:"arguments"`
	ReturnValues  []string   `json:"return_values"`
	SequenceIndex int        `json:"sequence_index"`
}

// IsSetupOrTeardown reports whether the event is a setup or teardown invocation.
func (e *KeywordEvent) IsSetupOrTeardown() bool {
	return e.Kind == KindSetup || e.Kind == KindTeardown
}

// Duration returns the elapsed time of the invocation, or zero if either
// timestamp is missing.
func (e *KeywordEvent) Duration() time.Duration {
	if e.StartTime == nil || e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(*e.StartTime)
}
