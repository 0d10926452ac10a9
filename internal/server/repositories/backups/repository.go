package backups

import (
	"context"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

type Repository interface {
	// Create inserts a backup row.
	Create(ctx context.Context, b *models.BackupRecord) error
	// GetByID returns a backup row (soft-deleted included) or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.BackupRecord, error)
	// List returns non-deleted backups matching the filter, newest first.
	List(ctx context.Context, f models.BackupFilter) ([]*models.BackupRecord, error)
	// SoftDelete flags a backup row as deleted.
	SoftDelete(ctx context.Context, id string) error
	// ListOlderThan returns non-deleted backups created before the cutoff.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.BackupRecord, error)
}
