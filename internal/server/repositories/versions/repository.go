package versions

import (
	"context"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

type Repository interface {
	// Create inserts a version row. A (target_id, version_number) collision
	// yields common.ErrDuplicate so the caller can recompute and retry.
	Create(ctx context.Context, v *models.VersionRecord) error
	// MaxVersionNumber returns the highest version number for a target,
	// or 0 when none exists.
	MaxVersionNumber(ctx context.Context, targetID string, targetType models.TargetType) (int64, error)
	// GetByID returns a version row or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.VersionRecord, error)
	// ListByTarget returns a target's versions ordered newest first.
	ListByTarget(ctx context.Context, targetID string, targetType models.TargetType) ([]*models.VersionRecord, error)
	// Delete removes a version row.
	Delete(ctx context.Context, id string) error
	// ListOlderThan returns versions created before the cutoff.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.VersionRecord, error)
}
