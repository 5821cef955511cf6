// Package training turns a directory of trace files into a model.
package training

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kwrec/internal/model"
	"kwrec/internal/models"
	"kwrec/internal/trace"
)

// ErrNoTracesTrained is returned when every input file failed extraction.
var ErrNoTracesTrained = errors.New("training: no trace could be extracted")

// DefaultPatterns match output.xml and JSON result files.
var DefaultPatterns = []string{"*.xml", "*.json"}

// DefaultConcurrency bounds parallel extraction.
const DefaultConcurrency = 4

// Options configures a Trainer.
type Options struct {
	Concurrency int
	// Patterns are filepath.Match globs tested against file base names.
	Patterns []string
	Extract  trace.Options
	Build    model.BuildOptions
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		Patterns:    DefaultPatterns,
		Extract:     trace.DefaultOptions(),
		Build:       model.DefaultBuildOptions(),
	}
}

// FileFailure is a trace that could not be used.
type FileFailure struct {
	Path string
	Err  error
}

// Report is the outcome of a training pass.
type Report struct {
	Model      *model.Model
	Files      []string
	Failures   []FileFailure
	Events     int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run converts the report into a persisted training run record.
func (r *Report) Run() models.TrainingRun {
	run := models.TrainingRun{
		ID:          uuid.New(),
		FilesOK:     slices.Clone(r.Files),
		FilesFailed: make([]string, len(r.Failures)),
		Events:      r.Events,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	if run.FilesOK == nil {
		run.FilesOK = []string{}
	}
	if r.Model != nil {
		run.ModelID = r.Model.ID()
	}
	for i, f := range r.Failures {
		run.FilesFailed[i] = f.Path
	}
	return run
}

// Trainer extracts traces in parallel and folds them into one model.
type Trainer struct {
	opts      Options
	extractor *trace.Extractor
	logger    *slog.Logger
}

// New creates a Trainer.
func New(opts Options, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultPatterns
	}
	return &Trainer{
		opts:      opts,
		extractor: trace.NewExtractor(opts.Extract, logger),
		logger:    logger,
	}
}

// Discover lists trace files under root in lexical order. A root that is a
// regular file is returned as is.
func (t *Trainer) Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat trace root: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !t.matches(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	slices.Sort(files)
	return files, nil
}

func (t *Trainer) matches(name string) bool {
	for _, p := range t.opts.Patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// TrainDir discovers and trains on every trace under root.
func (t *Trainer) TrainDir(ctx context.Context, root string) (*Report, error) {
	files, err := t.Discover(root)
	if err != nil {
		return nil, err
	}
	return t.TrainFiles(ctx, files)
}

type partial struct {
	model *model.Model
	err   error
}

// TrainFiles extracts each path and builds one model from the ones that
// succeed. Failed files are listed in the report. If every file fails the
// report is returned with ErrNoTracesTrained; no files at all yields an
// empty model.
func (t *Trainer) TrainFiles(ctx context.Context, paths []string) (*Report, error) {
	rep := &Report{StartedAt: time.Now().UTC()}
	parts := make([]partial, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, err := t.extractor.ExtractFile(path)
			if err != nil {
				parts[i].err = err
				return nil
			}
			parts[i].model = model.Build([][]models.KeywordEvent{events}, t.opts.Build)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	built := make([]*model.Model, 0, len(paths))
	for i, p := range parts {
		if p.err != nil {
			t.logger.Warn("skipping trace", "path", paths[i], "error", p.err)
			rep.Failures = append(rep.Failures, FileFailure{Path: paths[i], Err: p.err})
			continue
		}
		built = append(built, p.model)
		rep.Files = append(rep.Files, paths[i])
		rep.Events += p.model.Events()
	}

	if len(built) == 0 {
		rep.Model = model.Build(nil, t.opts.Build)
		rep.FinishedAt = time.Now().UTC()
		if len(paths) > 0 {
			return rep, fmt.Errorf("%w: %d files failed", ErrNoTracesTrained, len(paths))
		}
		return rep, nil
	}

	merged, err := model.Merge(built...)
	if err != nil {
		return nil, fmt.Errorf("merge partial models: %w", err)
	}
	rep.Model = merged
	rep.FinishedAt = time.Now().UTC()
	t.logger.Info("training complete",
		"files", len(rep.Files),
		"failed", len(rep.Failures),
		"events", rep.Events,
		"vocabulary", merged.Size(),
		"duration", rep.FinishedAt.Sub(rep.StartedAt),
	)
	return rep, nil
}
