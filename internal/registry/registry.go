// Package registry holds the active model behind an atomic reference.
//
// Queries read one immutable Snapshot per request; retraining or reloading
// publishes a new Snapshot in a single pointer swap.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

// ErrNotLoaded is returned when no model has been published yet.
var ErrNotLoaded = errors.New("model not loaded")

// Snapshot is one published model generation.
type Snapshot struct {
	Model      *model.Model
	Generation uint64
	Source     string
	LoadedAt   time.Time
}

// Info describes the snapshot for status endpoints.
func (s *Snapshot) Info() models.ModelInfo {
	info := s.Model.Info()
	info.Generation = s.Generation
	info.Source = s.Source
	info.LoadedAt = s.LoadedAt
	return info
}

// Source loads a persisted model.
type Source interface {
	Name() string
	Load(ctx context.Context) (*model.Model, error)
}

// Registry publishes model snapshots.
type Registry struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	lastErr    atomic.Pointer[error]
	logger     *slog.Logger

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// New returns an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Current returns the active snapshot, or nil before the first publish.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Model returns the active model or ErrNotLoaded.
func (r *Registry) Model() (*model.Model, error) {
	s := r.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s.Model, nil
}

// Ready reports whether a model is being served.
func (r *Registry) Ready() bool {
	return r.current.Load() != nil
}

// LastError is the most recent failed load or training attempt, cleared by
// the next successful publish.
func (r *Registry) LastError() error {
	if p := r.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// OnPublish registers fn to run after every publish.
func (r *Registry) OnPublish(fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Publish makes m the active model.
func (r *Registry) Publish(m *model.Model, source string) *Snapshot {
	r.mu.Lock()
	s := &Snapshot{
		Model:      m,
		Generation: r.generation.Add(1),
		Source:     source,
		LoadedAt:   time.Now().UTC(),
	}
	r.current.Store(s)
	r.lastErr.Store(nil)
	listeners := append([]func(*Snapshot){}, r.listeners...)
	r.mu.Unlock()

	r.logger.Info("model published",
		"generation", s.Generation,
		"source", source,
		"model_id", m.ID(),
		"vocabulary", m.Size(),
		"order", m.Order(),
	)
	for _, fn := range listeners {
		fn(s)
	}
	return s
}

// Fail records a failed load. The active snapshot, if any, stays in place.
func (r *Registry) Fail(err error) {
	r.lastErr.Store(&err)
	r.logger.Error("model load failed", "error", err, "serving", r.Ready())
}

// Reload loads a model from src and publishes it. On error the previous
// model stays active.
func (r *Registry) Reload(ctx context.Context, src Source) (*Snapshot, error) {
	m, err := src.Load(ctx)
	if err != nil {
		r.Fail(err)
		return nil, err
	}
	return r.Publish(m, src.Name()), nil
}
