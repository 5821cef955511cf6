package trace

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"kwrec/internal/models"
)

type frameKind int

const (
	frameOuter   frameKind = iota // before <robot>
	frameRobot                    // <robot>
	frameSuite                    // <suite>
	frameTest                     // <test>
	frameKeyword                  // <kw>, <setup>, <teardown>
	frameBlock                    // control structure or unnamed keyword
	frameSkip                     // excluded subtree
	frameArgs                     // <arguments>
	frameAssign                   // <assign>
	frameText                     // <arg> or <var> value
	frameData                     // ignored element
)

const (
	fieldArgs = iota
	fieldReturns
)

type frame struct {
	kind  frameKind
	scope scope
	event int
	field int
	text  strings.Builder
}

// blockTags are control structures whose keywords are visited in place.
var blockTags = map[string]bool{
	"for": true, "iter": true, "if": true, "branch": true, "try": true,
	"while": true, "group": true,
}

// xmlWalker streams output.xml tokens and keeps only a stack of open
// elements, never a tree.
type xmlWalker struct {
	f      *flattener
	stack  []*frame
	rooted bool
}

func (f *flattener) walkXML(data []byte) error {
	w := &xmlWalker{f: f, stack: []*frame{{kind: frameOuter, event: -1}}}
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &ExtractionError{Source: f.source, Reason: "unparsable markup", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end()
		case xml.CharData:
			if top := w.top(); top.kind == frameText {
				top.text.Write(t)
			}
		}
	}

	if !w.rooted {
		return &ExtractionError{Source: f.source, Reason: "missing <robot> root element"}
	}
	return nil
}

func (w *xmlWalker) top() *frame {
	return w.stack[len(w.stack)-1]
}

func (w *xmlWalker) push(fr *frame) {
	w.stack = append(w.stack, fr)
}

func (w *xmlWalker) start(el xml.StartElement) {
	top := w.top()
	tag := el.Name.Local

	switch top.kind {
	case frameOuter:
		if tag == "robot" {
			w.rooted = true
			w.push(&frame{kind: frameRobot, event: -1})
			return
		}
		w.push(&frame{kind: frameOuter, event: -1})
	case frameRobot:
		if tag == "suite" {
			w.pushSuite(top, el)
			return
		}
		w.push(&frame{kind: frameData, event: -1})
	case frameSuite, frameTest, frameKeyword, frameBlock:
		w.startNode(top, el)
	case frameArgs:
		if tag == "arg" {
			w.push(&frame{kind: frameText, event: top.event, field: fieldArgs})
			return
		}
		w.push(&frame{kind: frameData, event: -1})
	case frameAssign:
		if tag == "var" {
			w.push(&frame{kind: frameText, event: top.event, field: fieldReturns})
			return
		}
		w.push(&frame{kind: frameData, event: -1})
	case frameSkip:
		w.push(&frame{kind: frameSkip, event: -1})
	default:
		w.push(&frame{kind: frameData, event: -1})
	}
}

func (w *xmlWalker) startNode(top *frame, el xml.StartElement) {
	tag := el.Name.Local
	inKeyword := top.kind == frameKeyword

	switch {
	case tag == "suite" && top.kind == frameSuite:
		w.pushSuite(top, el)
	case tag == "test" && top.kind == frameSuite:
		name := attr(el, "name")
		w.push(&frame{kind: frameTest, event: -1, scope: scope{
			parent: name,
			test:   name,
			suite:  top.scope.suite,
		}})
	case tag == "kw" || tag == "setup" || tag == "teardown":
		w.startKeyword(top, el)
	case blockTags[tag]:
		w.push(&frame{kind: frameBlock, event: -1, scope: top.scope})
	case inKeyword && tag == "arguments":
		w.push(&frame{kind: frameArgs, event: top.event})
	case inKeyword && tag == "assign":
		w.push(&frame{kind: frameAssign, event: top.event})
	case inKeyword && tag == "arg":
		w.push(&frame{kind: frameText, event: top.event, field: fieldArgs})
	case inKeyword && tag == "var":
		w.push(&frame{kind: frameText, event: top.event, field: fieldReturns})
	case inKeyword && tag == "status":
		w.applyStatus(top.event, el)
		w.push(&frame{kind: frameData, event: -1})
	default:
		w.push(&frame{kind: frameData, event: -1})
	}
}

func (w *xmlWalker) pushSuite(top *frame, el xml.StartElement) {
	name := attr(el, "name")
	w.push(&frame{kind: frameSuite, event: -1, scope: scope{
		parent: name,
		suite:  joinSuite(top.scope.suite, name),
	}})
}

func (w *xmlWalker) startKeyword(top *frame, el xml.StartElement) {
	kind, ok := keywordKind(el.Name.Local, attr(el, "type"))
	if !ok {
		w.push(&frame{kind: frameBlock, event: -1, scope: top.scope})
		return
	}
	if !w.f.keep(kind) {
		w.push(&frame{kind: frameSkip, event: -1})
		return
	}

	sc := top.scope
	library := attr(el, "library")
	if library == "" {
		library = attr(el, "owner")
	}
	name, library := splitQualified(attr(el, "name"), library)
	if name == "" {
		w.f.skipUnnamed(sc)
		w.push(&frame{kind: frameBlock, event: -1, scope: sc})
		return
	}

	idx := w.f.emit(models.KeywordEvent{
		Name:       name,
		Library:    library,
		Kind:       kind,
		Depth:      sc.depth,
		ParentName: sc.parent,
		TestName:   sc.test,
		SuiteName:  sc.suite,
	})
	w.push(&frame{kind: frameKeyword, event: idx, scope: scope{
		depth:  sc.depth + 1,
		parent: name,
		test:   sc.test,
		suite:  sc.suite,
	}})
}

func (w *xmlWalker) applyStatus(idx int, el xml.StartElement) {
	ev := &w.f.events[idx]
	ev.Status = models.ParseStatus(attr(el, "status"))

	if start := attr(el, "starttime"); start != "" {
		ev.StartTime = parseTraceTime(start)
		ev.EndTime = parseTraceTime(attr(el, "endtime"))
		return
	}
	ev.StartTime = parseTraceTime(attr(el, "start"))
	if elapsed, err := strconv.ParseFloat(attr(el, "elapsed"), 64); err == nil {
		ev.EndTime = addElapsed(ev.StartTime, elapsed)
	}
}

func (w *xmlWalker) end() {
	if len(w.stack) <= 1 {
		return
	}
	fr := w.top()
	w.stack = w.stack[:len(w.stack)-1]

	if fr.kind != frameText || fr.event < 0 {
		return
	}
	ev := &w.f.events[fr.event]
	switch fr.field {
	case fieldArgs:
		ev.Arguments = append(ev.Arguments, fr.text.String())
	case fieldReturns:
		ev.ReturnValues = append(ev.ReturnValues, fr.text.String())
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
