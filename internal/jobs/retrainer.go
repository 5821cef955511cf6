// Package jobs runs background work for the server.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kwrec/internal/metrics"
	"kwrec/internal/registry"
	"kwrec/internal/store"
	"kwrec/internal/training"
)

// ErrTrainingInProgress is returned when a run is requested while another
// is still going.
var ErrTrainingInProgress = errors.New("training already in progress")

// Retrainer rebuilds the model from a trace directory, persists it and
// publishes it to the registry.
type Retrainer struct {
	trainer  *training.Trainer
	traceDir string
	store    store.Store
	registry *registry.Registry
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger

	mu sync.Mutex
}

// NewRetrainer creates a retrainer. metrics may be nil.
func NewRetrainer(trainer *training.Trainer, traceDir string, st store.Store, reg *registry.Registry, m *metrics.Metrics, interval time.Duration, logger *slog.Logger) *Retrainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrainer{
		trainer:  trainer,
		traceDir: traceDir,
		store:    st,
		registry: reg,
		metrics:  m,
		interval: interval,
		logger:   logger,
	}
}

// TraceDir is the directory scanned on each run.
func (r *Retrainer) TraceDir() string { return r.traceDir }

// Start retrains every interval until ctx is done. It does not run
// immediately; startup training is the caller's decision.
func (r *Retrainer) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.logger.Info("retrainer started", "interval", r.interval, "trace_dir", r.traceDir)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("retrainer stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrTrainingInProgress) {
				r.logger.Error("scheduled retrain failed", "error", err)
			}
		}
	}
}

// RunOnce trains, saves and publishes a new model. If every trace fails
// the active model is left untouched.
func (r *Retrainer) RunOnce(ctx context.Context) (*training.Report, error) {
	if !r.mu.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer r.mu.Unlock()

	rep, err := r.trainer.TrainDir(ctx, r.traceDir)
	if rep != nil {
		r.record(ctx, rep, err == nil)
	}
	if err != nil {
		r.registry.Fail(err)
		return rep, err
	}

	if err := r.store.Save(ctx, rep.Model); err != nil {
		// The new model is still served; it is just not durable.
		r.logger.Error("failed to persist model", "store", r.store.Name(), "error", err)
	}
	r.registry.Publish(rep.Model, "training:"+r.traceDir)
	return rep, nil
}

func (r *Retrainer) record(ctx context.Context, rep *training.Report, ok bool) {
	if r.metrics != nil {
		r.metrics.RecordTraining(ok, len(rep.Files), len(rep.Failures))
	}
	rec, isRecorder := r.store.(store.RunRecorder)
	if !isRecorder {
		return
	}
	if err := rec.RecordRun(ctx, rep.Run()); err != nil {
		r.logger.Warn("failed to record training run", "error", err)
	}
}

// Bootstrap loads the stored model, training from the trace directory when
// nothing is stored. A corrupt snapshot is not replaced: the server stays
// unready until a reload or an explicit train succeeds.
func (r *Retrainer) Bootstrap(ctx context.Context) error {
	_, err := r.registry.Reload(ctx, r.store)
	if r.metrics != nil {
		r.metrics.RecordReload(err)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNoSnapshot):
		if r.traceDir == "" {
			return fmt.Errorf("no stored model and no trace directory configured")
		}
		r.logger.Info("no stored model, training from traces", "trace_dir", r.traceDir)
		_, err := r.RunOnce(ctx)
		return err
	default:
		return err
	}
}
