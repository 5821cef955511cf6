package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kwrec/internal/db"
	"kwrec/internal/model"
	"kwrec/internal/models"
)

// PostgresStore keeps a history of snapshots in the model_snapshots table
// and records training runs.
type PostgresStore struct {
	db   *db.DB
	keep int
}

// NewPostgresStore returns a store that retains the newest keep snapshots.
// keep <= 0 disables pruning.
func NewPostgresStore(database *db.DB, keep int) *PostgresStore {
	return &PostgresStore{db: database, keep: keep}
}

// Name implements Store.
func (s *PostgresStore) Name() string { return KindPostgres }

// Load decodes the newest snapshot.
func (s *PostgresStore) Load(ctx context.Context) (*model.Model, error) {
	snap, err := s.db.GetLatestSnapshot(ctx)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("fetch latest snapshot: %w", err)
	}
	return model.DeserializeBytes(snap.Data)
}

// Save inserts a new snapshot and prunes old ones.
func (s *PostgresStore) Save(ctx context.Context, m *model.Model) error {
	data, err := m.Bytes()
	if err != nil {
		return err
	}
	snap := &models.StoredSnapshot{
		ID:             m.ID(),
		Order:          m.Order(),
		VocabularySize: m.Size(),
		Traces:         m.Traces(),
		Events:         m.Events(),
		Data:           data,
		BuiltAt:        m.BuiltAt(),
	}
	if err := s.db.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if s.keep > 0 {
		n, err := s.db.PruneSnapshots(ctx, s.keep)
		if err != nil {
			slog.Warn("failed to prune model snapshots", "error", err)
		} else if n > 0 {
			slog.Debug("pruned model snapshots", "deleted", n)
		}
	}
	return nil
}

// RecordRun implements RunRecorder.
func (s *PostgresStore) RecordRun(ctx context.Context, run models.TrainingRun) error {
	return s.db.CreateTrainingRun(ctx, &run)
}
