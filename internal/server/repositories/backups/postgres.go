// Package backups provides PostgreSQL-backed persistence for backup records.
package backups

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

// PostgresRepository implements backup storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, type, target_id, tenant_id, blob_key, summary, triggered_by, created_at, is_deleted`

func (r *PostgresRepository) Create(ctx context.Context, b *models.BackupRecord) error {
	summary, err := json.Marshal(b.Summary)
	if err != nil {
		return fmt.Errorf("%w: marshal summary: %v", common.ErrDatabase, err)
	}

	query := `
		INSERT INTO backups (id, type, target_id, tenant_id, blob_key, summary, triggered_by, created_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE);
	`
	_, err = r.db.ExecContext(ctx, query,
		b.ID, string(b.Type), b.TargetID, b.TenantID, b.BlobKey, summary, b.TriggeredBy, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert backup: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.BackupRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM backups WHERE id=$1`

	b, err := scanBackup(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select backup: %v", common.ErrDatabase, err)
	}
	return b, nil
}

func (r *PostgresRepository) List(ctx context.Context, f models.BackupFilter) ([]*models.BackupRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM backups WHERE is_deleted = FALSE`
	var args []any

	if f.Type != "" {
		args = append(args, string(f.Type))
		query += ` AND type=$` + strconv.Itoa(len(args))
	}
	if f.TargetID != "" {
		args = append(args, f.TargetID)
		query += ` AND target_id=$` + strconv.Itoa(len(args))
	}
	if f.TenantID != "" {
		args = append(args, f.TenantID)
		query += ` AND tenant_id=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: select backups: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	return collectBackups(rows)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE backups SET is_deleted = TRUE WHERE id=$1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: soft-delete backup: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.BackupRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM backups WHERE is_deleted = FALSE AND created_at < $1`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: select old backups: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	return collectBackups(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBackup(row rowScanner) (*models.BackupRecord, error) {
	var (
		b          models.BackupRecord
		backupType string
		targetID   sql.NullString
		summary    []byte
	)
	if err := row.Scan(&b.ID, &backupType, &targetID, &b.TenantID, &b.BlobKey,
		&summary, &b.TriggeredBy, &b.CreatedAt, &b.IsDeleted); err != nil {
		return nil, err
	}
	b.Type = models.TargetType(backupType)
	b.TargetID = targetID.String
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &b.Summary); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func collectBackups(rows *sql.Rows) ([]*models.BackupRecord, error) {
	var result []*models.BackupRecord
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan backup: %v", common.ErrDatabase, err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate backups: %v", common.ErrDatabase, err)
	}
	return result, nil
}
