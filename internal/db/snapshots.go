package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"kwrec/internal/models"
)

// SaveSnapshot stores a serialized model. CreatedAt is filled in.
func (d *DB) SaveSnapshot(ctx context.Context, s *models.StoredSnapshot) error {
	query := `
		INSERT INTO model_snapshots (id, model_order, vocabulary_size, traces, events, data, built_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data
		RETURNING created_at
	`
	return d.Pool.QueryRow(ctx, query,
		s.ID, s.Order, s.VocabularySize, s.Traces, s.Events, s.Data, s.BuiltAt,
	).Scan(&s.CreatedAt)
}

// GetLatestSnapshot returns the most recently stored snapshot with its data.
func (d *DB) GetLatestSnapshot(ctx context.Context) (*models.StoredSnapshot, error) {
	query := `
		SELECT id, model_order, vocabulary_size, traces, events, data, built_at, created_at
		FROM model_snapshots
		ORDER BY created_at DESC, built_at DESC
		LIMIT 1
	`
	return d.scanSnapshot(d.Pool.QueryRow(ctx, query))
}

// GetSnapshotByID returns one snapshot with its data.
func (d *DB) GetSnapshotByID(ctx context.Context, id uuid.UUID) (*models.StoredSnapshot, error) {
	query := `
		SELECT id, model_order, vocabulary_size, traces, events, data, built_at, created_at
		FROM model_snapshots WHERE id = $1
	`
	return d.scanSnapshot(d.Pool.QueryRow(ctx, query, id))
}

func (d *DB) scanSnapshot(row pgx.Row) (*models.StoredSnapshot, error) {
	var s models.StoredSnapshot
	err := row.Scan(&s.ID, &s.Order, &s.VocabularySize, &s.Traces, &s.Events, &s.Data, &s.BuiltAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSnapshots returns snapshot metadata, newest first, without the data.
func (d *DB) ListSnapshots(ctx context.Context, limit int) ([]models.StoredSnapshot, error) {
	query := `
		SELECT id, model_order, vocabulary_size, traces, events, built_at, created_at
		FROM model_snapshots
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := d.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []models.StoredSnapshot
	for rows.Next() {
		var s models.StoredSnapshot
		if err := rows.Scan(&s.ID, &s.Order, &s.VocabularySize, &s.Traces, &s.Events, &s.BuiltAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (d *DB) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `
		DELETE FROM model_snapshots
		WHERE id NOT IN (
			SELECT id FROM model_snapshots ORDER BY created_at DESC LIMIT $1
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
