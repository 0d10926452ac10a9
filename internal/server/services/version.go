// Package services implements the core operations of the archive: version
// snapshots, backups, restores and retention sweeping. Each service receives
// its collaborators (repositories, blob store, payload cipher, audit log)
// by reference at construction; nothing here is a process-wide singleton.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Frijidia/Arkiva-sub000/internal/blob"
	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/audit"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/repomanager"
)

// versionCreateAttempts bounds retries when two writers race for the same
// version number and one loses on the unique constraint.
const versionCreateAttempts = 5

// VersionService creates and serves immutable version snapshots.
type VersionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	audit       audit.Log
	logger      logging.Logger
}

// NewVersionService wires a VersionService.
func NewVersionService(db *sql.DB, rm repomanager.RepositoryManager, blobs blob.Store, auditLog audit.Log, logger logging.Logger) *VersionService {
	return &VersionService{
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		audit:       auditLog,
		logger:      logger.With("module", "versions"),
	}
}

func versionBlobKey(targetType models.TargetType, targetID, versionID string) string {
	return fmt.Sprintf("versions/%s/%s/%s", targetType, targetID, versionID)
}

// serializeContent turns version content into bytes: byte slices pass
// through, anything else is JSON-marshalled.
func serializeContent(content any) ([]byte, error) {
	switch c := content.(type) {
	case []byte:
		return c, nil
	case nil:
		return nil, fmt.Errorf("%w: missing content", common.ErrValidation)
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("%w: serialize content: %v", common.ErrValidation, err)
		}
		return data, nil
	}
}

// CreateVersion uploads the content blob and inserts a version row with the
// next number for the target. The number is assigned inside a transaction;
// losing a concurrent race surfaces as a unique violation and the assignment
// is retried. If the row insert ultimately fails the uploaded blob is removed
// best-effort.
func (s *VersionService) CreateVersion(ctx context.Context, targetID string, targetType models.TargetType, content any, metadata map[string]any, createdBy string) (*models.VersionRecord, error) {
	if targetID == "" {
		return nil, fmt.Errorf("%w: missing target id", common.ErrValidation)
	}
	if !models.ValidVersionTarget(targetType) {
		return nil, fmt.Errorf("%w: invalid target type %q", common.ErrValidation, targetType)
	}

	data, err := serializeContent(content)
	if err != nil {
		return nil, err
	}

	rec := &models.VersionRecord{
		ID:         uuid.New().String(),
		TargetID:   targetID,
		TargetType: targetType,
		Metadata:   metadata,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
	rec.BlobKey = versionBlobKey(targetType, targetID, rec.ID)

	if _, err := s.blobs.Put(ctx, rec.BlobKey, data); err != nil {
		return nil, err
	}

	err = s.insertWithNextNumber(ctx, rec)
	if err != nil {
		s.cleanupOrphanBlob(ctx, rec.BlobKey)
		return nil, err
	}

	s.audit.Record(ctx, createdBy, "version.create", string(targetType), targetID,
		map[string]any{"version_id": rec.ID, "version_number": rec.VersionNumber})

	return rec, nil
}

func (s *VersionService) insertWithNextNumber(ctx context.Context, rec *models.VersionRecord) error {
	for attempt := 0; attempt < versionCreateAttempts; attempt++ {
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Versions(tx)
			max, err := repo.MaxVersionNumber(ctx, rec.TargetID, rec.TargetType)
			if err != nil {
				return err
			}
			rec.VersionNumber = max + 1
			return repo.Create(ctx, rec)
		})
		if errors.Is(err, common.ErrDuplicate) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: version number contention on target %s", common.ErrDatabase, rec.TargetID)
}

// cleanupOrphanBlob attempts to remove a blob whose row never landed. Failure
// is logged, not retried; a later reconciliation can pick it up.
func (s *VersionService) cleanupOrphanBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Error(ctx, "orphan blob cleanup failed", "blob_key", key, "error", err.Error())
	}
}

// GetVersionHistory returns a target's versions ordered newest first.
func (s *VersionService) GetVersionHistory(ctx context.Context, targetID string, targetType models.TargetType) ([]*models.VersionRecord, error) {
	if !models.ValidVersionTarget(targetType) {
		return nil, fmt.Errorf("%w: invalid target type %q", common.ErrValidation, targetType)
	}
	return s.repomanager.Versions(s.db).ListByTarget(ctx, targetID, targetType)
}

// GetVersion returns a single version row.
func (s *VersionService) GetVersion(ctx context.Context, id string) (*models.VersionRecord, error) {
	return s.repomanager.Versions(s.db).GetByID(ctx, id)
}

// GetVersionContent downloads a version's blob. Content that parses as JSON
// is returned as a document, anything else as raw bytes.
func (s *VersionService) GetVersionContent(ctx context.Context, id string) (*models.VersionContent, error) {
	rec, err := s.repomanager.Versions(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Get(ctx, rec.BlobKey)
	if err != nil {
		return nil, err
	}

	out := &models.VersionContent{Metadata: rec.Metadata}
	var doc any
	if json.Unmarshal(data, &doc) == nil {
		out.Document = doc
	} else {
		out.Raw = data
	}
	return out, nil
}

// CompareVersions diffs two versions: metadata keys whose values changed and
// byte-equality of content. No semantic content diff is attempted.
func (s *VersionService) CompareVersions(ctx context.Context, idA, idB string) (*models.VersionDiff, error) {
	repo := s.repomanager.Versions(s.db)

	a, err := repo.GetByID(ctx, idA)
	if err != nil {
		return nil, err
	}
	b, err := repo.GetByID(ctx, idB)
	if err != nil {
		return nil, err
	}

	contentA, err := s.blobs.Get(ctx, a.BlobKey)
	if err != nil {
		return nil, err
	}
	contentB, err := s.blobs.Get(ctx, b.BlobKey)
	if err != nil {
		return nil, err
	}

	diff := &models.VersionDiff{
		MetadataDiff: metadataDiff(a.Metadata, b.Metadata),
		ContentEqual: bytes.Equal(contentA, contentB),
	}
	return diff, nil
}

// metadataDiff reports keys whose values differ between old and new,
// including keys present on only one side.
func metadataDiff(old, new map[string]any) map[string][2]any {
	diff := make(map[string][2]any)
	for k, ov := range old {
		nv, ok := new[k]
		if !ok || !jsonEqual(ov, nv) {
			diff[k] = [2]any{ov, nv}
		}
	}
	for k, nv := range new {
		if _, ok := old[k]; !ok {
			diff[k] = [2]any{nil, nv}
		}
	}
	return diff
}

// jsonEqual compares two metadata values through their JSON encoding, which
// sidesteps type drift between inserted values and JSONB round trips.
func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// DeleteVersion removes the blob first and only then the row. If the blob
// delete fails the row stays, preserving referential consistency over
// availability.
func (s *VersionService) DeleteVersion(ctx context.Context, id, userID string) error {
	repo := s.repomanager.Versions(s.db)

	rec, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, rec.BlobKey); err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Record(ctx, userID, "version.delete", string(rec.TargetType), rec.TargetID,
		map[string]any{"version_id": id, "version_number": rec.VersionNumber})
	return nil
}
