// game/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ftotnem/RPG-SERVICES/shared/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound means the backend has no progression for the requested id.
	ErrNotFound = errors.New("progression not found")
	// ErrPersistence wraps any backend I/O failure.
	ErrPersistence = errors.New("persistence failure")
)

// ProgressionStore is implemented by every persistence backend. Calls block
// and must only be made from worker goroutines.
type ProgressionStore interface {
	// Load returns ErrNotFound when the id has never been saved.
	Load(ctx context.Context, id uuid.UUID) (*models.Progression, error)
	Save(ctx context.Context, p *models.Progression) error
}

func persistenceErr(op string, id string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, id, err)
}
