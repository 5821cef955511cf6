package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"kwrec/internal/models"
)

// CreateTrainingRun records a finished training pass.
func (d *DB) CreateTrainingRun(ctx context.Context, run *models.TrainingRun) error {
	var modelID *uuid.UUID
	if run.ModelID != uuid.Nil {
		modelID = &run.ModelID
	}
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO training_runs (id, model_id, files_ok, files_failed, events, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, modelID, nonNil(run.FilesOK), nonNil(run.FilesFailed), run.Events, run.StartedAt, run.FinishedAt)
	return err
}

// GetTrainingRunByID retrieves one training run.
func (d *DB) GetTrainingRunByID(ctx context.Context, id uuid.UUID) (*models.TrainingRun, error) {
	query := `
		SELECT id, model_id, files_ok, files_failed, events, started_at, finished_at
		FROM training_runs WHERE id = $1
	`
	run, err := scanTrainingRun(d.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTrainingRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListTrainingRuns returns the most recent runs, newest first.
func (d *DB) ListTrainingRuns(ctx context.Context, limit int) ([]models.TrainingRun, error) {
	query := `
		SELECT id, model_id, files_ok, files_failed, events, started_at, finished_at
		FROM training_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := d.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.TrainingRun
	for rows.Next() {
		run, err := scanTrainingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanTrainingRun(row pgx.Row) (*models.TrainingRun, error) {
	var run models.TrainingRun
	var modelID *uuid.UUID
	if err := row.Scan(&run.ID, &modelID, &run.FilesOK, &run.FilesFailed, &run.Events, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	if modelID != nil {
		run.ModelID = *modelID
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
