package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Snapshot header
const (
	snapshotMagic   = "KWRM"
	snapshotVersion = 1
)

// LoadError reports a snapshot that could not be decoded or failed
// validation. The previously active model, if any, stays in effect.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load model: %s: %v", e.Reason, e.Err)
	}
	return "load model: " + e.Reason
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErr(reason string, err error) error {
	return &LoadError{Reason: reason, Err: err}
}

type snapshot struct {
	ID          uuid.UUID                 `json:"id"`
	BuiltAt     time.Time                 `json:"built_at"`
	Order       int                       `json:"order"`
	Traces      int                       `json:"traces"`
	Events      int64                     `json:"events"`
	Unigrams    map[string]int64          `json:"unigrams"`
	Libraries   map[string][]libraryCount `json:"libraries"`
	Transitions []transitionRow           `json:"transitions"`
}

type libraryCount struct {
	Library string `json:"library"`
	Count   int64  `json:"count"`
}

type transitionRow struct {
	Context []string         `json:"context"`
	Next    map[string]int64 `json:"next"`
}

// Serialize encodes the model as a header followed by zstd-compressed JSON.
// Equal models produce equal bytes.
func (m *Model) Serialize(w io.Writer) error {
	snap := snapshot{
		ID:        m.id,
		BuiltAt:   m.builtAt,
		Order:     m.order,
		Traces:    m.traces,
		Events:    m.events,
		Unigrams:  m.unigrams,
		Libraries: make(map[string][]libraryCount, len(m.libraries)),
	}
	for name, t := range m.libraries {
		pairs := make([]libraryCount, len(t.names))
		for i, lib := range t.names {
			pairs[i] = libraryCount{Library: lib, Count: t.counts[i]}
		}
		snap.Libraries[name] = pairs
	}
	for _, tables := range m.transitions {
		keys := make([]string, 0, len(tables))
		for key := range tables {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			t := tables[key]
			next := make(map[string]int64, len(t.ranked))
			for _, kc := range t.ranked {
				next[kc.Keyword] = kc.Count
			}
			snap.Transitions = append(snap.Transitions, transitionRow{Context: slices.Clone(t.context), Next: next})
		}
	}

	if _, err := io.WriteString(w, snapshotMagic); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if _, err := w.Write([]byte{snapshotVersion}); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// Bytes serializes the model into memory.
func (m *Model) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes and validates a snapshot written by Serialize.
// Every failure is a *LoadError.
func Deserialize(r io.Reader) (*Model, error) {
	header := make([]byte, len(snapshotMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, loadErr("truncated header", err)
	}
	if string(header[:len(snapshotMagic)]) != snapshotMagic {
		return nil, loadErr("not a model snapshot", nil)
	}
	if v := header[len(snapshotMagic)]; v != snapshotVersion {
		return nil, loadErr(fmt.Sprintf("unsupported snapshot version %d", v), nil)
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, loadErr("corrupt snapshot", err)
	}
	defer dec.Close()

	var snap snapshot
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, loadErr("corrupt snapshot", err)
	}
	return snap.restore()
}

// DeserializeBytes decodes an in-memory snapshot.
func DeserializeBytes(data []byte) (*Model, error) {
	return Deserialize(bytes.NewReader(data))
}

func (s *snapshot) restore() (*Model, error) {
	if s.Order < 1 || s.Order > MaxOrder {
		return nil, loadErr(fmt.Sprintf("order %d out of range", s.Order), nil)
	}
	if s.Traces < 0 {
		return nil, loadErr("negative trace count", nil)
	}

	c := newCounter(s.Order)
	c.traces = s.Traces
	var total int64
	for name, n := range s.Unigrams {
		if name == "" || n <= 0 {
			return nil, loadErr(fmt.Sprintf("invalid unigram %q=%d", name, n), nil)
		}
		c.unigrams[name] = n
		total += n
	}
	if total != s.Events {
		return nil, loadErr(fmt.Sprintf("event total %d does not match unigram sum %d", s.Events, total), nil)
	}

	for name, pairs := range s.Libraries {
		if _, ok := c.unigrams[name]; !ok {
			return nil, loadErr(fmt.Sprintf("library counts for unknown keyword %q", name), nil)
		}
		for _, p := range pairs {
			if p.Library == "" || p.Count <= 0 {
				return nil, loadErr(fmt.Sprintf("invalid library count for %q", name), nil)
			}
			c.addLibrary(name, p.Library, p.Count)
		}
	}

	for _, row := range s.Transitions {
		k := len(row.Context)
		if k < 1 || k > s.Order {
			return nil, loadErr(fmt.Sprintf("transition context of length %d", k), nil)
		}
		for _, name := range row.Context {
			if _, ok := c.unigrams[name]; !ok {
				return nil, loadErr(fmt.Sprintf("transition context names unknown keyword %q", name), nil)
			}
		}
		for next, n := range row.Next {
			if _, ok := c.unigrams[next]; !ok || n <= 0 {
				return nil, loadErr(fmt.Sprintf("invalid transition to %q", next), nil)
			}
			c.addTransition(row.Context, next, n)
		}
	}

	id := s.ID
	if id == uuid.Nil {
		return nil, loadErr("missing model id", nil)
	}
	return c.freeze(id, s.BuiltAt.UTC()), nil
}
