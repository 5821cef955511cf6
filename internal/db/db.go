// Package db is the PostgreSQL backend: model_snapshots holds serialized
// models, training_runs records each training job and context_lookups
// tallies served queries by keyword and backoff outcome.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"kwrec/migrations"
)

// applicationName tags kwrec sessions in pg_stat_activity unless the
// connection string already names one.
const applicationName = "kwrec"

// DB holds the shared pool used by the snapshot, run and lookup queries.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects to connString and verifies the server answers.
func New(ctx context.Context, connString string) (*DB, error) {
	cfg, err := poolConfig(connString)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open kwrec database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach kwrec database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func poolConfig(connString string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	params := cfg.ConnConfig.RuntimeParams
	if params["application_name"] == "" {
		params["application_name"] = applicationName
	}
	return cfg, nil
}

// RunMigrations brings the snapshot, run and lookup tables up to the
// newest embedded schema. An already current schema is not an error.
func (d *DB) RunMigrations(connString string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load kwrec schema: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, connString)
	if err != nil {
		return fmt.Errorf("prepare kwrec schema migration: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate kwrec schema: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	d.Pool.Close()
}
