package restores

import (
	"context"

	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

type Repository interface {
	// Create inserts a restore audit row.
	Create(ctx context.Context, r *models.RestoreRecord) error
	// GetByID returns a restore row or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.RestoreRecord, error)
	// ExistsBySource reports whether any restore references the given source.
	// The retention sweeper uses this to veto deletions.
	ExistsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) (bool, error)
}
