package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"kwrec/internal/model"
)

// FileStore keeps the model in a single snapshot file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Name implements Store.
func (s *FileStore) Name() string { return "file:" + s.path }

// Path is the snapshot file location.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the snapshot file.
func (s *FileStore) Load(_ context.Context) (*model.Model, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	return model.Deserialize(f)
}

// Save writes to a temporary file in the same directory and renames it into
// place, so readers and watchers never see a partial snapshot.
func (s *FileStore) Save(_ context.Context, m *model.Model) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".kwrec-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.Serialize(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace model file: %w", err)
	}
	return nil
}
