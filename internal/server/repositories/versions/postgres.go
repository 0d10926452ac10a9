// Package versions provides PostgreSQL-backed persistence for immutable
// entity version records.
package versions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements version storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.VersionRecord) error {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", common.ErrDatabase, err)
	}

	query := `
		INSERT INTO versions (id, target_id, target_type, version_number, blob_key, metadata, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err = r.db.ExecContext(ctx, query,
		v.ID, v.TargetID, string(v.TargetType), v.VersionNumber, v.BlobKey, metadata, v.CreatedBy, v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrDuplicate
		}
		return fmt.Errorf("%w: insert version: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *PostgresRepository) MaxVersionNumber(ctx context.Context, targetID string, targetType models.TargetType) (int64, error) {
	query := `SELECT COALESCE(MAX(version_number), 0) FROM versions WHERE target_id=$1 AND target_type=$2`

	var max int64
	if err := r.db.QueryRowContext(ctx, query, targetID, string(targetType)).Scan(&max); err != nil {
		return 0, fmt.Errorf("%w: select max version: %v", common.ErrDatabase, err)
	}
	return max, nil
}

const selectColumns = `id, target_id, target_type, version_number, blob_key, metadata, created_by, created_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VersionRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM versions WHERE id=$1`

	v, err := scanVersion(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select version: %v", common.ErrDatabase, err)
	}
	return v, nil
}

func (r *PostgresRepository) ListByTarget(ctx context.Context, targetID string, targetType models.TargetType) ([]*models.VersionRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM versions
		WHERE target_id=$1 AND target_type=$2 ORDER BY version_number DESC`

	rows, err := r.db.QueryContext(ctx, query, targetID, string(targetType))
	if err != nil {
		return nil, fmt.Errorf("%w: select versions: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	return collectVersions(rows)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM versions WHERE id=$1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: delete version: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.VersionRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM versions WHERE created_at < $1`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: select old versions: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	return collectVersions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*models.VersionRecord, error) {
	var (
		v          models.VersionRecord
		targetType string
		metadata   []byte
	)
	if err := row.Scan(&v.ID, &v.TargetID, &targetType, &v.VersionNumber,
		&v.BlobKey, &metadata, &v.CreatedBy, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.TargetType = models.TargetType(targetType)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

func collectVersions(rows *sql.Rows) ([]*models.VersionRecord, error) {
	var result []*models.VersionRecord
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan version: %v", common.ErrDatabase, err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate versions: %v", common.ErrDatabase, err)
	}
	return result, nil
}
