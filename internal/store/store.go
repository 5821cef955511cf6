// Package store persists serialized models.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kwrec/internal/model"
	"kwrec/internal/models"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no stored model")

// Store saves and loads the current model. Load returns ErrNoSnapshot when
// empty and a *model.LoadError when the stored bytes are unusable.
type Store interface {
	Name() string
	Load(ctx context.Context) (*model.Model, error)
	Save(ctx context.Context, m *model.Model) error
}

// RunRecorder is implemented by stores that keep training history.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.TrainingRun) error
}

// Kinds
const (
	KindFile     = "file"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// ParseKind validates a MODEL_STORE value.
func ParseKind(s string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "", KindFile:
		return KindFile, nil
	case KindPostgres, KindRedis:
		return k, nil
	default:
		return "", fmt.Errorf("unknown model store %q", s)
	}
}
