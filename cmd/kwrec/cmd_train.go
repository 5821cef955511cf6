package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kwrec/internal/store"
	"kwrec/internal/training"
)

var (
	trainOut         string
	trainOrder       int
	trainConcurrency int
	trainSkipFixture bool
	trainFormat      string
)

var trainCmd = &cobra.Command{
	Use:   "train [path...]",
	Short: "Build a model from trace files",
	Long: `Build a model from trace files and save it to the configured store.

Each path may be a trace file or a directory searched recursively for
training.patterns (default *.xml and *.json). With no paths, TRACE_DIR is
used. Files that fail to parse are reported and skipped; the run fails only
when no file could be used.

Examples:
  kwrec train results/
  kwrec train output.xml other/output.xml --out model.kwm
  kwrec train --order 3 --skip-setup-teardown`,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&trainOut, "out", "o", "", "write the snapshot to this file instead of the configured store")
	trainCmd.Flags().IntVar(&trainOrder, "order", 0, "maximum context length (default model.order)")
	trainCmd.Flags().IntVar(&trainConcurrency, "concurrency", 0, "files parsed in parallel (default training.concurrency)")
	trainCmd.Flags().BoolVar(&trainSkipFixture, "skip-setup-teardown", false, "drop setup and teardown keywords and their children")
	trainCmd.Flags().StringVar(&trainFormat, "format", "human", "output format (human, json)")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, tuning, err := loadSettings()
	if err != nil {
		return err
	}
	if trainOrder != 0 {
		tuning.Model.Order = trainOrder
	}
	if trainConcurrency != 0 {
		tuning.Training.Concurrency = trainConcurrency
	}
	if trainSkipFixture {
		tuning.Model.IncludeSetupTeardown = false
	}
	if err := tuning.Validate(); err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		if cfg.TraceDir == "" {
			return fmt.Errorf("no trace paths given and TRACE_DIR is not set")
		}
		roots = []string{cfg.TraceDir}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trainer := training.New(tuning.TrainingOptions(), slog.Default())
	var paths []string
	for _, root := range roots {
		found, err := trainer.Discover(root)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no trace files found under %v", roots)
	}

	rep, trainErr := trainer.TrainFiles(ctx, paths)
	if trainErr != nil && !errors.Is(trainErr, training.ErrNoTracesTrained) {
		return trainErr
	}

	var be *backend
	var dest store.Store
	if trainOut != "" {
		dest = store.NewFileStore(trainOut)
	} else {
		be, err = openBackend(ctx, cfg, tuning)
		if err != nil {
			return err
		}
		defer be.Close()
		dest = be
		if recErr := be.RecordRun(ctx, rep.Run()); recErr != nil {
			slog.Warn("failed to record training run", "error", recErr)
		}
	}

	if trainErr == nil {
		if err := dest.Save(ctx, rep.Model); err != nil {
			return fmt.Errorf("save model: %w", err)
		}
	}

	if trainFormat == "json" {
		if err := writeJSON(rep.Run()); err != nil {
			return err
		}
	} else {
		printReport(rep, dest.Name())
	}
	return trainErr
}

func printReport(rep *training.Report, dest string) {
	for _, f := range rep.Failures {
		fmt.Fprintf(os.Stderr, "FAILED  %s: %v\n", f.Path, f.Err)
	}
	if len(rep.Files) == 0 {
		fmt.Printf("No model written: all %d trace files failed.\n", len(rep.Failures))
		return
	}
	m := rep.Model
	fmt.Printf("Trained on %d of %d files in %s\n",
		len(rep.Files), len(rep.Files)+len(rep.Failures), rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	fmt.Printf("  model     %s (order %d)\n", m.ID(), m.Order())
	fmt.Printf("  traces    %d\n", m.Traces())
	fmt.Printf("  events    %d\n", m.Events())
	fmt.Printf("  keywords  %d in %d libraries\n", m.Size(), len(m.Libraries()))
	fmt.Printf("  saved to  %s\n", dest)
}
