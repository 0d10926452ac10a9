package tenantkeys

import (
	"context"

	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

type Repository interface {
	// Get returns the active wrapped key for a tenant, or common.ErrNotFound.
	Get(ctx context.Context, tenantID string) (*models.TenantKey, error)
	// Create inserts a new wrapped key row.
	Create(ctx context.Context, key *models.TenantKey) error
	// DeleteByTenant purges all key rows of a tenant.
	DeleteByTenant(ctx context.Context, tenantID string) error
}
