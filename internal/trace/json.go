package trace

import (
	"encoding/json"
	"fmt"
	"strings"

	"kwrec/internal/models"
)

// jsonNode covers suites, tests, keywords and control structures of both
// the Robot Framework JSON result format ({"suite": ...}) and the older
// log-embedded layout ({"robot": {"suite": ...}}).
type jsonNode struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Owner     string     `json:"owner"`
	Library   string     `json:"library"`
	Libname   string     `json:"libname"`
	Args      flexArgs   `json:"args"`
	Arguments flexArgs   `json:"arguments"`
	Assign    flexArgs   `json:"assign"`
	Status    jsonStatus `json:"status"`

	StartTime   string   `json:"start_time"`
	Starttime   string   `json:"starttime"`
	Endtime     string   `json:"endtime"`
	ElapsedTime *float64 `json:"elapsed_time"`

	Body     []jsonNode `json:"body"`
	Kw       flexNodes  `json:"kw"`
	Setup    *jsonNode  `json:"setup"`
	Teardown *jsonNode  `json:"teardown"`
	Tests    []jsonNode `json:"tests"`
	Test     flexNodes  `json:"test"`
	Suites   []jsonNode `json:"suites"`
	Suite    flexNodes  `json:"suite"`
}

type jsonDocument struct {
	Suite flexNodes `json:"suite"`
	Robot *struct {
		Suite flexNodes `json:"suite"`
	} `json:"robot"`
}

// flexNodes accepts a single object or a list of objects.
type flexNodes []jsonNode

func (n *flexNodes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var list []jsonNode
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*n = list
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	var one jsonNode
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*n = flexNodes{one}
	return nil
}

// flexArgs accepts a string or a list of scalars.
type flexArgs []string

func (a *flexArgs) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			out = append(out, fmt.Sprint(v))
		}
		*a = out
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = flexArgs{fmt.Sprint(v)}
	return nil
}

// jsonStatus accepts "PASS" or {"status": "PASS", ...}.
type jsonStatus struct {
	Status    string `json:"status"`
	Starttime string `json:"starttime"`
	Endtime   string `json:"endtime"`
}

func (s *jsonStatus) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Status)
	}
	if string(data) == "null" {
		return nil
	}
	type plain jsonStatus
	return json.Unmarshal(data, (*plain)(s))
}

func (f *flattener) walkJSON(data []byte) error {
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ExtractionError{Source: f.source, Reason: "unparsable JSON trace", Err: err}
	}

	suites := doc.Suite
	if len(suites) == 0 && doc.Robot != nil {
		suites = doc.Robot.Suite
	}
	if len(suites) == 0 {
		return &ExtractionError{Source: f.source, Reason: "missing suite root structure"}
	}

	for i := range suites {
		f.jsonSuite(&suites[i], "")
	}
	return nil
}

func (f *flattener) jsonSuite(n *jsonNode, parentSuite string) {
	sc := scope{parent: n.Name, suite: joinSuite(parentSuite, n.Name)}

	f.jsonFixture(n.Setup, models.KindSetup, sc)
	f.jsonBody(n.Kw, sc)
	for i := range n.Tests {
		f.jsonTest(&n.Tests[i], sc.suite)
	}
	for i := range n.Test {
		f.jsonTest(&n.Test[i], sc.suite)
	}
	for i := range n.Suites {
		f.jsonSuite(&n.Suites[i], sc.suite)
	}
	for i := range n.Suite {
		f.jsonSuite(&n.Suite[i], sc.suite)
	}
	f.jsonFixture(n.Teardown, models.KindTeardown, sc)
}

func (f *flattener) jsonTest(n *jsonNode, suite string) {
	sc := scope{parent: n.Name, test: n.Name, suite: suite}
	f.jsonFixture(n.Setup, models.KindSetup, sc)
	f.jsonBody(n.Body, sc)
	f.jsonBody(n.Kw, sc)
	f.jsonFixture(n.Teardown, models.KindTeardown, sc)
}

func (f *flattener) jsonFixture(n *jsonNode, kind models.Kind, sc scope) {
	if n == nil || (n.Name == "" && len(n.Body) == 0 && len(n.Kw) == 0) {
		return
	}
	f.jsonKeyword(n, kind, sc)
}

func (f *flattener) jsonBody(items []jsonNode, sc scope) {
	for i := range items {
		item := &items[i]
		switch strings.ToUpper(strings.TrimSpace(item.Type)) {
		case "MESSAGE", "MSG":
			continue
		case "SETUP":
			f.jsonKeyword(item, models.KindSetup, sc)
		case "TEARDOWN":
			f.jsonKeyword(item, models.KindTeardown, sc)
		case "", "KEYWORD", "KW":
			f.jsonKeyword(item, models.KindKeyword, sc)
		default:
			f.jsonBody(item.Body, sc)
			f.jsonBody(item.Kw, sc)
		}
	}
}

func (f *flattener) jsonKeyword(n *jsonNode, kind models.Kind, sc scope) {
	if !f.keep(kind) {
		return
	}

	library := n.Owner
	if library == "" {
		library = n.Library
	}
	if library == "" {
		library = n.Libname
	}
	name, library := splitQualified(n.Name, library)

	child := sc
	if name == "" {
		f.skipUnnamed(sc)
	} else {
		ev := models.KeywordEvent{
			Name:         name,
			Library:      library,
			Kind:         kind,
			Depth:        sc.depth,
			ParentName:   sc.parent,
			TestName:     sc.test,
			SuiteName:    sc.suite,
			Status:       models.ParseStatus(n.Status.Status),
			Arguments:    append([]string{}, n.Args...),
			ReturnValues: append([]string{}, n.Assign...),
		}
		ev.Arguments = append(ev.Arguments, n.Arguments...)

		switch {
		case n.StartTime != "":
			ev.StartTime = parseTraceTime(n.StartTime)
			if n.ElapsedTime != nil {
				ev.EndTime = addElapsed(ev.StartTime, *n.ElapsedTime)
			}
		case n.Starttime != "":
			ev.StartTime = parseTraceTime(n.Starttime)
			ev.EndTime = parseTraceTime(n.Endtime)
		default:
			ev.StartTime = parseTraceTime(n.Status.Starttime)
			ev.EndTime = parseTraceTime(n.Status.Endtime)
		}

		f.emit(ev)
		child = scope{depth: sc.depth + 1, parent: name, test: sc.test, suite: sc.suite}
	}

	f.jsonBody(n.Body, child)
	f.jsonBody(n.Kw, child)
}
