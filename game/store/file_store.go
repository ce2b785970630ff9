// game/store/file_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore keeps one YAML document per player under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create player data directory %s: %w", dir, err)
	}
	log.Printf("INFO: FileStore using directory %s", dir)
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".yml")
}

// Load reads <dir>/<uuid>.yml.
func (s *FileStore) Load(ctx context.Context, id uuid.UUID) (*models.Progression, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistenceErr("load", id.String(), err)
	}
	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceErr("load", id.String(), err)
	}
	var p models.Progression
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, persistenceErr("decode", id.String(), err)
	}
	if p.UUID == "" {
		p.UUID = id.String()
	}
	return &p, nil
}

// Save writes a temp file next to the target and renames it into place.
func (s *FileStore) Save(ctx context.Context, p *models.Progression) error {
	if err := ctx.Err(); err != nil {
		return persistenceErr("save", p.UUID, err)
	}
	id, err := uuid.Parse(p.UUID)
	if err != nil {
		return persistenceErr("save", p.UUID, err)
	}
	p.UpdatedAt = time.Now().UTC()
	raw, err := yaml.Marshal(p)
	if err != nil {
		return persistenceErr("encode", p.UUID, err)
	}

	tmp, err := os.CreateTemp(s.dir, id.String()+".*.tmp")
	if err != nil {
		return persistenceErr("save", p.UUID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return persistenceErr("save", p.UUID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return persistenceErr("save", p.UUID, err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return persistenceErr("save", p.UUID, err)
	}
	return nil
}
