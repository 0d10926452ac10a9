package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/blob"
	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/audit"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/repomanager"
)

// SweepSummary reports one retention pass.
type SweepSummary struct {
	DeletedCount int
	ErrorCount   int
}

// RetentionService deletes backups and versions past the retention cutoff,
// skipping any still referenced by a restore record. It only ever touches
// rows older than the cutoff, so it is safe to run concurrently with ordinary
// backup and version creation, and repeated runs are idempotent.
type RetentionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	audit       audit.Log
	logger      logging.Logger
}

// NewRetentionService wires a RetentionService.
func NewRetentionService(db *sql.DB, rm repomanager.RepositoryManager, blobs blob.Store, auditLog audit.Log, logger logging.Logger) *RetentionService {
	return &RetentionService{
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		audit:       auditLog,
		logger:      logger.With("module", "retention"),
	}
}

// Sweep removes backups and versions older than retentionDays. Each deletion
// removes the blob first and the row second; a blob failure leaves the row in
// place and counts as an error.
func (s *RetentionService) Sweep(ctx context.Context, retentionDays int) (*SweepSummary, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("%w: retention days must be positive", common.ErrValidation)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	summary := &SweepSummary{}

	if err := s.sweepBackups(ctx, cutoff, summary); err != nil {
		return summary, err
	}
	if err := s.sweepVersions(ctx, cutoff, summary); err != nil {
		return summary, err
	}

	s.logger.Info(ctx, "retention sweep finished",
		"cutoff", cutoff, "deleted", summary.DeletedCount, "errors", summary.ErrorCount)
	return summary, nil
}

func (s *RetentionService) sweepBackups(ctx context.Context, cutoff time.Time, summary *SweepSummary) error {
	backupRepo := s.repomanager.Backups(s.db)
	restoreRepo := s.repomanager.Restores(s.db)

	old, err := backupRepo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, b := range old {
		referenced, err := restoreRepo.ExistsBySource(ctx, models.SourceBackup, b.ID)
		if err != nil {
			summary.ErrorCount++
			continue
		}
		if referenced {
			continue
		}

		if err := s.blobs.Delete(ctx, b.BlobKey); err != nil {
			s.logger.Error(ctx, "sweep: backup blob delete failed", "backup_id", b.ID, "error", err.Error())
			summary.ErrorCount++
			continue
		}
		if err := backupRepo.SoftDelete(ctx, b.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "sweep: backup row delete failed", "backup_id", b.ID, "error", err.Error())
			summary.ErrorCount++
			continue
		}

		summary.DeletedCount++
		s.audit.Record(ctx, "retention-sweeper", "backup.expire", string(b.Type), b.TargetID,
			map[string]any{"backup_id": b.ID})
	}
	return nil
}

func (s *RetentionService) sweepVersions(ctx context.Context, cutoff time.Time, summary *SweepSummary) error {
	versionRepo := s.repomanager.Versions(s.db)
	restoreRepo := s.repomanager.Restores(s.db)

	old, err := versionRepo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, v := range old {
		referenced, err := restoreRepo.ExistsBySource(ctx, models.SourceVersion, v.ID)
		if err != nil {
			summary.ErrorCount++
			continue
		}
		if referenced {
			continue
		}

		if err := s.blobs.Delete(ctx, v.BlobKey); err != nil {
			s.logger.Error(ctx, "sweep: version blob delete failed", "version_id", v.ID, "error", err.Error())
			summary.ErrorCount++
			continue
		}
		if err := versionRepo.Delete(ctx, v.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "sweep: version row delete failed", "version_id", v.ID, "error", err.Error())
			summary.ErrorCount++
			continue
		}

		summary.DeletedCount++
		s.audit.Record(ctx, "retention-sweeper", "version.expire", string(v.TargetType), v.TargetID,
			map[string]any{"version_id": v.ID, "version_number": v.VersionNumber})
	}
	return nil
}
