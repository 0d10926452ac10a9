// Package restores provides PostgreSQL-backed persistence for the restore
// audit trail.
package restores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

// PostgresRepository implements restore storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.RestoreRecord) error {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", common.ErrDatabase, err)
	}

	query := `
		INSERT INTO restores (id, source_type, source_id, target_type, reconstructed_target_id, tenant_id, triggered_by, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, string(rec.SourceType), rec.SourceID, string(rec.TargetType),
		rec.ReconstructedTargetID, rec.TenantID, rec.TriggeredBy, metadata, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert restore: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.RestoreRecord, error) {
	query := `SELECT id, source_type, source_id, target_type, reconstructed_target_id, tenant_id, triggered_by, metadata, created_at
		FROM restores WHERE id=$1`

	var (
		rec        models.RestoreRecord
		sourceType string
		targetType string
		metadata   []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &sourceType, &rec.SourceID, &targetType,
		&rec.ReconstructedTargetID, &rec.TenantID, &rec.TriggeredBy, &metadata, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select restore: %v", common.ErrDatabase, err)
	}

	rec.SourceType = models.SourceType(sourceType)
	rec.TargetType = models.TargetType(targetType)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("%w: unmarshal metadata: %v", common.ErrDatabase, err)
		}
	}
	return &rec, nil
}

func (r *PostgresRepository) ExistsBySource(ctx context.Context, sourceType models.SourceType, sourceID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM restores WHERE source_type=$1 AND source_id=$2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, string(sourceType), sourceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: select restore reference: %v", common.ErrDatabase, err)
	}
	return exists, nil
}
