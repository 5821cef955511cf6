// Package trace flattens recorded test execution traces into ordered
// sequences of keyword invocations.
package trace

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kwrec/internal/models"
)

// ExtractionError reports a trace that is not a valid hierarchical trace.
// It is fatal for that one source only.
type ExtractionError struct {
	Source string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := e.Reason
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Options controls which nodes receive a sequence slot.
type Options struct {
	// IncludeSetupTeardown keeps setup and teardown keywords (and everything
	// nested in them) in the sequence. When false the whole subtree is dropped.
	IncludeSetupTeardown bool
}

// DefaultOptions returns the extraction policy used for training.
func DefaultOptions() Options {
	return Options{IncludeSetupTeardown: true}
}

// Extractor converts trace documents into keyword event sequences.
// It holds no per-document state and is safe for concurrent use.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// NewExtractor creates an extractor with the given policy.
func NewExtractor(opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Extract parses trace bytes with the default policy.
func Extract(data []byte) ([]models.KeywordEvent, error) {
	return NewExtractor(DefaultOptions(), nil).ExtractBytes("", data)
}

// ExtractFile reads and parses the trace at path.
func (x *Extractor) ExtractFile(path string) ([]models.KeywordEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractionError{Source: filepath.Base(path), Reason: "unreadable trace", Err: err}
	}
	return x.ExtractBytes(path, data)
}

// Extract reads r fully and parses it. source names the trace in errors and logs.
func (x *Extractor) Extract(source string, r io.Reader) ([]models.KeywordEvent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ExtractionError{Source: source, Reason: "unreadable trace", Err: err}
	}
	return x.ExtractBytes(source, data)
}

// ExtractBytes parses an XML (output.xml) or JSON trace. The format is
// detected from the first significant byte.
func (x *Extractor) ExtractBytes(source string, data []byte) ([]models.KeywordEvent, error) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if len(trimmed) == 0 {
		return nil, &ExtractionError{Source: source, Reason: "empty trace"}
	}

	f := &flattener{source: source, opts: x.opts, logger: x.logger}
	var err error
	if trimmed[0] == '{' {
		err = f.walkJSON(trimmed)
	} else {
		err = f.walkXML(trimmed)
	}
	if err != nil {
		return nil, err
	}
	if f.events == nil {
		f.events = []models.KeywordEvent{}
	}
	return f.events, nil
}

// flattener accumulates events for one document during a single
// depth-first pass.
type flattener struct {
	source  string
	opts    Options
	logger  *slog.Logger
	events  []models.KeywordEvent
	skipped int
}

// scope is the hierarchy context handed to child nodes.
type scope struct {
	depth  int
	parent string
	test   string
	suite  string
}

// emit appends ev in pre-order and returns its index.
func (f *flattener) emit(ev models.KeywordEvent) int {
	ev.SequenceIndex = len(f.events) + 1
	if ev.Arguments == nil {
		ev.Arguments = []string{}
	}
	if ev.ReturnValues == nil {
		ev.ReturnValues = []string{}
	}
	if ev.Status == "" {
		ev.Status = models.StatusUnknown
	}
	f.events = append(f.events, ev)
	return len(f.events) - 1
}

func (f *flattener) skipUnnamed(sc scope) {
	f.skipped++
	f.logger.Warn("skipping keyword without a name",
		"source", f.source,
		"depth", sc.depth,
		"parent", sc.parent,
		"test", sc.test,
	)
}

// keep reports whether a node of kind k takes part in the sequence.
func (f *flattener) keep(k models.Kind) bool {
	if k == models.KindSetup || k == models.KindTeardown {
		return f.opts.IncludeSetupTeardown
	}
	return true
}

// keywordKind maps an element tag and type attribute to a node kind.
// ok is false for control structures, which are transparent.
func keywordKind(tag, typ string) (models.Kind, bool) {
	switch tag {
	case "setup":
		return models.KindSetup, true
	case "teardown":
		return models.KindTeardown, true
	}
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "kw", "keyword":
		return models.KindKeyword, true
	case "setup":
		return models.KindSetup, true
	case "teardown":
		return models.KindTeardown, true
	default:
		return "", false
	}
}

// splitQualified separates "Library.Keyword" names. An explicit library
// wins. The qualifier must not contain whitespace, so keyword names with a
// dot in free text stay intact.
func splitQualified(name, library string) (string, string) {
	name = strings.TrimSpace(name)
	library = strings.TrimSpace(library)
	if library != "" {
		if strings.HasPrefix(name, library+".") {
			name = strings.TrimPrefix(name, library+".")
		}
		return name, library
	}
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	qual, kw := name[:i], strings.TrimSpace(name[i+1:])
	if strings.ContainsAny(qual, " \t") || kw == "" {
		return name, ""
	}
	return kw, qual
}

const (
	legacyTimeLayout = "20060102 15:04:05.000"
	isoTimeLayout    = "2006-01-02T15:04:05.999999"
)

// parseTraceTime accepts both timestamp styles. Traces carry no zone, so
// times are read as UTC.
func parseTraceTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return nil
	}
	for _, layout := range []string{legacyTimeLayout, isoTimeLayout, time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

func addElapsed(start *time.Time, seconds float64) *time.Time {
	if start == nil || seconds < 0 {
		return nil
	}
	end := start.Add(time.Duration(seconds * float64(time.Second)))
	return &end
}

func joinSuite(parent, name string) string {
	if parent == "" {
		return name
	}
	if name == "" {
		return parent
	}
	return fmt.Sprintf("%s.%s", parent, name)
}
