package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	id := uuid.New()

	if _, err := fs.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty store = %v, want ErrNotFound", err)
	}

	in := &models.Progression{
		UUID:        id.String(),
		Class:       "WARRIOR",
		Level:       7,
		CurrentExp:  42.5,
		RequiredExp: 201,
		BaseAttack:  12,
		BaseMaxMana: 130,
		CurrentMana: 99,
		Extensions:  map[string]string{"damage_skin": "flame"},
	}
	if err := fs.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := fs.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Class != "WARRIOR" || out.Level != 7 || out.CurrentExp != 42.5 || out.BaseMaxMana != 130 {
		t.Fatalf("unexpected progression %+v", out)
	}
	if out.Extensions["damage_skin"] != "flame" {
		t.Fatalf("extensions not persisted: %+v", out.Extensions)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != id.String()+".yml" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id := uuid.New()
	if err := os.WriteFile(filepath.Join(dir, id.String()+".yml"), []byte("level: [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = fs.Load(context.Background(), id)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Load corrupt = %v, want ErrPersistence", err)
	}
}

func TestFileStoreRejectsBadUUID(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.Save(context.Background(), &models.Progression{UUID: "../escape"}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Save with bad uuid = %v, want ErrPersistence", err)
	}
}
