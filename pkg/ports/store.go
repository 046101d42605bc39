package ports

import (
	"context"

	"github.com/aretw0/canopy/pkg/domain"
)

// RunStore defines the interface for persisting run history.
type RunStore interface {
	// Save persists a run record under its ID, replacing any previous version.
	Save(ctx context.Context, run *domain.RunRecord) error

	// Load retrieves a run record.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Delete removes a run record. Deleting a missing run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of all stored runs, most recent first.
	List(ctx context.Context) ([]string, error)
}
