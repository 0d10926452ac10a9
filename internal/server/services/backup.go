package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Frijidia/Arkiva-sub000/internal/archive"
	"github.com/Frijidia/Arkiva-sub000/internal/blob"
	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/audit"
	"github.com/Frijidia/Arkiva-sub000/internal/server/entities"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/repomanager"
)

// collectWorkers bounds concurrent descriptor fetches per container level.
const collectWorkers = 4

// manifestEntry is the name of the archive's top-level metadata document.
const manifestEntry = "manifest"

// Manifest is the structural metadata document written at the head of every
// backup archive. Entities lists every snapshotted entity in depth-first
// order, root first.
type Manifest struct {
	BackupID  string                 `json:"backup_id"`
	Type      models.TargetType      `json:"type"`
	TargetID  string                 `json:"target_id,omitempty"`
	TenantID  string                 `json:"tenant_id"`
	CreatedAt time.Time              `json:"created_at"`
	Entities  []*entities.Descriptor `json:"entities"`
}

// BackupRequest is the input to CreateBackup.
type BackupRequest struct {
	Type        models.TargetType
	TargetID    string
	TenantID    string
	TriggeredBy string
}

// BackupService snapshots entities (and their subtrees) into compressed
// archives. Each request moves through validating, collecting, compressing,
// uploading and recording; a failure in any phase aborts the request and
// cleans up whatever that phase produced.
type BackupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	registry    entities.Registry
	audit       audit.Log
	logger      logging.Logger
}

// NewBackupService wires a BackupService.
func NewBackupService(db *sql.DB, rm repomanager.RepositoryManager, blobs blob.Store, registry entities.Registry, auditLog audit.Log, logger logging.Logger) *BackupService {
	return &BackupService{
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		registry:    registry,
		audit:       auditLog,
		logger:      logger.With("module", "backups"),
	}
}

func backupBlobKey(tenantID, backupID string) string {
	return fmt.Sprintf("backups/%s/%s.tgz", tenantID, backupID)
}

// CreateBackup snapshots the request's target into a new archive and records
// it. Repeated calls produce additional distinct backups; there is no dedup.
func (s *BackupService) CreateBackup(ctx context.Context, req BackupRequest) (*models.BackupRecord, error) {
	state := models.BackupValidating

	rec, err := s.runPipeline(ctx, req, &state)
	if err != nil {
		failedAt := state
		state = models.BackupFailed
		s.logger.Error(ctx, "backup failed", "state", string(state), "failed_at", string(failedAt),
			"type", string(req.Type), "target_id", req.TargetID, "error", err.Error())
		return nil, fmt.Errorf("backup failed at %s: %w", failedAt, err)
	}

	s.audit.Record(ctx, req.TriggeredBy, "backup.create", string(req.Type), req.TargetID,
		map[string]any{"backup_id": rec.ID, "blob_key": rec.BlobKey})

	return rec, nil
}

func (s *BackupService) runPipeline(ctx context.Context, req BackupRequest, state *models.BackupState) (*models.BackupRecord, error) {
	// VALIDATING
	if !models.ValidBackupTarget(req.Type) {
		return nil, fmt.Errorf("%w: invalid backup type %q", common.ErrValidation, req.Type)
	}
	if req.Type != models.TargetSystem && req.TargetID == "" {
		return nil, fmt.Errorf("%w: missing target id for type %q", common.ErrValidation, req.Type)
	}
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant id", common.ErrValidation)
	}

	backupID := uuid.New().String()

	// COLLECTING
	*state = models.BackupCollecting
	rootID := req.TargetID
	if req.Type == models.TargetSystem {
		// the system collaborator is addressed by tenant and returns the
		// tenant's cabinets as children
		rootID = req.TenantID
	}
	descriptors, err := s.collect(ctx, req.Type, rootID)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		BackupID:  backupID,
		Type:      req.Type,
		TargetID:  req.TargetID,
		TenantID:  req.TenantID,
		CreatedAt: time.Now().UTC(),
		Entities:  descriptors,
	}

	// COMPRESSING
	*state = models.BackupCompressing
	tmp, err := os.CreateTemp("", "arkiva-backup-*.tgz")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	fileCount, err := writeArchive(tmp, manifest)
	if err != nil {
		return nil, err
	}

	// UPLOADING
	*state = models.BackupUploading
	info, err := tmp.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat temp archive: %w", err)
	}

	blobKey := backupBlobKey(req.TenantID, backupID)
	put, err := s.blobs.PutReader(ctx, blobKey, tmp, info.Size())
	if err != nil {
		return nil, err
	}

	// RECORDING
	*state = models.BackupRecording
	rec := &models.BackupRecord{
		ID:       backupID,
		Type:     req.Type,
		TargetID: req.TargetID,
		TenantID: req.TenantID,
		BlobKey:  blobKey,
		Summary: map[string]any{
			"entity_count":  len(descriptors),
			"file_count":    fileCount,
			"archive_bytes": put.Size,
		},
		TriggeredBy: req.TriggeredBy,
		CreatedAt:   manifest.CreatedAt,
	}

	if err := s.repomanager.Backups(s.db).Create(ctx, rec); err != nil {
		// the archive is already uploaded; remove it best-effort
		if delErr := s.blobs.Delete(ctx, blobKey); delErr != nil {
			s.logger.Error(ctx, "orphan archive cleanup failed", "blob_key", blobKey, "error", delErr.Error())
		}
		return nil, err
	}

	*state = models.BackupDone
	return rec, nil
}

// collect walks the target depth-first, fetching the children of each
// container with a bounded worker group. Order is preserved: parent first,
// then each child subtree in the parent's child order.
func (s *BackupService) collect(ctx context.Context, t models.TargetType, id string) ([]*entities.Descriptor, error) {
	svc, err := s.registry.For(t)
	if err != nil {
		return nil, err
	}
	d, err := svc.GetDescriptor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("collect %s %s: %w", t, id, err)
	}

	out := []*entities.Descriptor{d}
	if len(d.Children) == 0 {
		return out, nil
	}

	subtrees := make([][]*entities.Descriptor, len(d.Children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(collectWorkers)
	for i, child := range d.Children {
		i, child := i, child
		g.Go(func() error {
			sub, err := s.collect(gctx, child.Type, child.ID)
			if err != nil {
				return err
			}
			subtrees[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, sub := range subtrees {
		out = append(out, sub...)
	}
	return out, nil
}

// writeArchive streams the manifest, per-entity metadata and file content
// into w. Returns the number of content entries written.
func writeArchive(w io.Writer, manifest *Manifest) (int, error) {
	aw := archive.NewWriter(w)

	if err := aw.WriteMeta(manifestEntry, manifest); err != nil {
		return 0, err
	}

	fileCount := 0
	for _, d := range manifest.Entities {
		if err := aw.WriteMeta("entity/"+d.ID, d); err != nil {
			return 0, err
		}
		if len(d.Content) > 0 {
			if err := aw.WriteContent(d.ID, d.Content); err != nil {
				return 0, err
			}
			fileCount++
		}
	}

	if err := aw.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return fileCount, nil
}

// GetBackup returns a backup row. Soft-deleted backups surface as not found.
func (s *BackupService) GetBackup(ctx context.Context, id string) (*models.BackupRecord, error) {
	rec, err := s.repomanager.Backups(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

// ListBackups returns non-deleted backups matching the filter, newest first.
func (s *BackupService) ListBackups(ctx context.Context, f models.BackupFilter) ([]*models.BackupRecord, error) {
	return s.repomanager.Backups(s.db).List(ctx, f)
}

// SignedArchiveURL issues a presigned download URL for a backup's archive.
func (s *BackupService) SignedArchiveURL(ctx context.Context, id string, ttl time.Duration) (string, error) {
	rec, err := s.GetBackup(ctx, id)
	if err != nil {
		return "", err
	}
	return s.blobs.SignedURL(ctx, rec.BlobKey, ttl)
}
