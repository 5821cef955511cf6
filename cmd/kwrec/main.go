// Command kwrec trains keyword transition models from test execution traces
// and serves next-keyword recommendations and autocomplete.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/storage/redis/v3"
	"github.com/spf13/cobra"

	"kwrec/internal/config"
	"kwrec/internal/db"
	"kwrec/internal/models"
	"kwrec/internal/store"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "kwrec",
	Short: "Keyword recommendations from test execution traces",
	Long: `kwrec learns which keywords tend to follow which from recorded test runs
(output.xml or JSON results) and answers "what comes next" and "complete
this name" queries over HTTP or from the command line.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "tuning file (default $CONFIG_FILE or kwrec.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(flagLevel string) {
	lvl := flagLevel
	if lvl == "" {
		lvl = os.Getenv("LOG_LEVEL")
	}
	var level slog.Level
	switch strings.ToLower(lvl) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadSettings reads the environment and the tuning file.
func loadSettings() (*config.Config, *config.Tuning, error) {
	cfg := config.Load()
	if configFile != "" {
		cfg.ConfigFile = configFile
	}
	tuning, err := config.LoadTuning(cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, tuning, nil
}

// backend is the configured model store plus whatever it holds open.
type backend struct {
	store.Store
	db    *db.DB
	redis *redis.Storage
}

// RecordRun keeps training history in Postgres whichever store holds the
// snapshots. Without a database it is a no-op.
func (b *backend) RecordRun(ctx context.Context, run models.TrainingRun) error {
	if b.db == nil {
		return nil
	}
	return b.db.CreateTrainingRun(ctx, &run)
}

func (b *backend) Close() {
	if b.db != nil {
		b.db.Close()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			slog.Warn("failed to close redis", "error", err)
		}
	}
}

// openBackend connects the store named by MODEL_STORE. Postgres is opened
// whenever DATABASE_URL is set so training runs and lookups are persisted
// regardless of where snapshots live.
func openBackend(ctx context.Context, cfg *config.Config, tuning *config.Tuning) (*backend, error) {
	kind, err := store.ParseKind(cfg.ModelStore)
	if err != nil {
		return nil, err
	}

	b := &backend{}
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("migrations completed")
		b.db = database
	}
	if cfg.RedisURL != "" {
		b.redis = redis.New(redis.Config{URL: cfg.RedisURL})
	}

	switch kind {
	case store.KindPostgres:
		if b.db == nil {
			b.Close()
			return nil, fmt.Errorf("MODEL_STORE=postgres requires DATABASE_URL")
		}
		b.Store = store.NewPostgresStore(b.db, tuning.Store.KeepSnapshots)
	case store.KindRedis:
		if b.redis == nil {
			b.Close()
			return nil, fmt.Errorf("MODEL_STORE=redis requires REDIS_URL")
		}
		b.Store = store.NewKVStore(b.redis, store.DefaultRedisKey)
	default:
		b.Store = store.NewFileStore(cfg.ModelPath)
	}
	return b, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
