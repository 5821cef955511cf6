package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"kwrec/internal/autocomplete"
	"kwrec/internal/jobs"
	"kwrec/internal/metrics"
	"kwrec/internal/middleware"
	"kwrec/internal/model"
	"kwrec/internal/recommend"
	"kwrec/internal/registry"
	"kwrec/internal/server"
	"kwrec/internal/store"
	"kwrec/internal/training"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation API",
	Long: `Start the HTTP API. The stored model is loaded on startup; when none is
stored and TRACE_DIR is set, a model is trained from the traces there first.
A corrupt stored model leaves the API unready until an admin reload or train
succeeds.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, tuning, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackend(ctx, cfg, tuning)
	if err != nil {
		return err
	}
	defer be.Close()

	logger := slog.Default()
	reg := registry.New(logger)

	// Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var lookups metrics.LookupStore = metrics.NewMemoryLookups()
	if be.db != nil {
		lookups = be.db
	}
	m := metrics.New(promReg, lookups, reg)
	defer m.Wait()

	trainer := training.New(tuning.TrainingOptions(), logger)
	retrainer := jobs.NewRetrainer(trainer, cfg.TraceDir, be, reg, m, cfg.RetrainInterval, logger)

	if err := retrainer.Bootstrap(ctx); err != nil {
		var le *model.LoadError
		switch {
		case errors.As(err, &le):
			slog.Error("stored model is unusable; serving without a model", "store", be.Name(), "error", err)
		case errors.Is(err, training.ErrNoTracesTrained):
			slog.Error("startup training produced no model", "trace_dir", cfg.TraceDir, "error", err)
		case errors.Is(err, store.ErrNoSnapshot):
			slog.Warn("no stored model; serving without a model", "store", be.Name())
		default:
			slog.Warn("no model available at startup", "error", err)
		}
	}

	// Hot reload of the snapshot file
	if fs, ok := be.Store.(*store.FileStore); ok && cfg.WatchModel {
		w, err := registry.NewWatcher(reg, fs, fs.Path(), registry.DefaultDebounce, logger)
		if err != nil {
			return fmt.Errorf("create model watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start model watcher: %w", err)
		}
		defer w.Stop()
	}

	go retrainer.Start(ctx)

	var verifier middleware.TokenVerifier
	if cfg.AuthEnabled() {
		v, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			slog.Warn("failed to initialize OIDC; admin endpoints disabled", "error", err)
		} else {
			verifier = v
		}
	} else if cfg.OIDCIssuer != "" {
		slog.Warn("OIDC_ISSUER is set without OIDC_CLIENT_ID; admin endpoints use the development policy")
	}

	var limiterStorage fiber.Storage
	if be.redis != nil {
		limiterStorage = be.redis
	}

	srv := server.New(cfg, limiterStorage)
	srv.RegisterRoutes(server.Deps{
		Registry:        reg,
		Recommend:       recommend.New(tuning.RecommendOptions()),
		Autocomplete:    autocomplete.New(tuning.AutocompleteOptions()),
		RecommendMax:    tuning.Recommend.DefaultMaxResults,
		AutocompleteMax: tuning.Autocomplete.DefaultMaxResults,
		Source:          be.Store,
		Retrainer:       retrainer,
		Metrics:         m,
		Gatherer:        promReg,
		Verifier:        verifier,
	})

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	slog.Info("shutting down server")
	cancel()
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server exited")
	return nil
}
