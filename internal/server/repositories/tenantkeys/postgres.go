// Package tenantkeys provides PostgreSQL-backed persistence for wrapped
// per-tenant data-encryption keys.
package tenantkeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

// PostgresRepository implements key storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, tenantID string) (*models.TenantKey, error) {
	query := `SELECT tenant_id, wrapped_key, nonce, auth_tag, created_at FROM tenant_keys WHERE tenant_id=$1`

	var k models.TenantKey
	err := r.db.QueryRowContext(ctx, query, tenantID).
		Scan(&k.TenantID, &k.WrappedKey, &k.Nonce, &k.AuthTag, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select tenant key: %v", common.ErrDatabase, err)
	}
	return &k, nil
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.TenantKey) error {
	query := `
		INSERT INTO tenant_keys (tenant_id, wrapped_key, nonce, auth_tag, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.db.ExecContext(ctx, query,
		key.TenantID, key.WrappedKey, key.Nonce, key.AuthTag, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert tenant key: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	query := `DELETE FROM tenant_keys WHERE tenant_id=$1`
	if _, err := r.db.ExecContext(ctx, query, tenantID); err != nil {
		return fmt.Errorf("%w: delete tenant keys: %v", common.ErrDatabase, err)
	}
	return nil
}
