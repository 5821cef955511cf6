package db

import "errors"

// Domain-level database error sentinels.
var (
	ErrSnapshotNotFound    = errors.New("model snapshot not found")
	ErrTrainingRunNotFound = errors.New("training run not found")
)
