package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Frijidia/Arkiva-sub000/internal/archive"
	"github.com/Frijidia/Arkiva-sub000/internal/blob"
	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/audit"
	"github.com/Frijidia/Arkiva-sub000/internal/server/entities"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/repomanager"
)

// RestoreRequest is the input to Restore.
type RestoreRequest struct {
	SourceType  models.SourceType
	SourceID    string
	TriggeredBy string
	Hints       models.DestinationHints
}

// RestoreService reconstructs entities from backups or versions. Container
// restores are best-effort: a corrupt child is recorded as a warning and
// skipped, never blocking its siblings.
type RestoreService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	registry    entities.Registry
	audit       audit.Log
	logger      logging.Logger
}

// NewRestoreService wires a RestoreService.
func NewRestoreService(db *sql.DB, rm repomanager.RepositoryManager, blobs blob.Store, registry entities.Registry, auditLog audit.Log, logger logging.Logger) *RestoreService {
	return &RestoreService{
		db:          db,
		repomanager: rm,
		blobs:       blobs,
		registry:    registry,
		audit:       auditLog,
		logger:      logger.With("module", "restores"),
	}
}

// Restore reconstructs the entity recorded by the given backup or version.
// An entity that still exists receives a new version; a missing one is
// recreated from the snapshot. Hint validation happens before any mutation.
func (s *RestoreService) Restore(ctx context.Context, req RestoreRequest) (*models.RestoreResult, error) {
	switch req.SourceType {
	case models.SourceBackup:
		return s.restoreFromBackup(ctx, req)
	case models.SourceVersion:
		return s.restoreFromVersion(ctx, req)
	default:
		return nil, fmt.Errorf("%w: invalid source type %q", common.ErrValidation, req.SourceType)
	}
}

// needsParentHint reports whether the snapshot's original parent reference
// cannot be trusted and a destination hint is mandatory. Container entities
// always need one: their original parent may itself have been deleted since
// the snapshot was taken.
func needsParentHint(t models.TargetType, originalParent string) bool {
	if t == models.TargetSystem {
		return false
	}
	return t.IsContainer() || originalParent == ""
}

func (s *RestoreService) restoreFromBackup(ctx context.Context, req RestoreRequest) (*models.RestoreResult, error) {
	rec, err := s.repomanager.Backups(s.db).GetByID(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted {
		return nil, common.ErrNotFound
	}

	data, err := s.blobs.Get(ctx, rec.BlobKey)
	if err != nil {
		return nil, err
	}

	meta, content, err := archive.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("extract archive %s: %w", rec.ID, err)
	}

	rawManifest, ok := meta[manifestEntry]
	if !ok {
		return nil, fmt.Errorf("%w: archive %s has no manifest", common.ErrValidation, rec.ID)
	}
	var manifest Manifest
	if err := json.Unmarshal(rawManifest, &manifest); err != nil {
		return nil, fmt.Errorf("%w: archive %s manifest: %v", common.ErrValidation, rec.ID, err)
	}
	if len(manifest.Entities) == 0 {
		return nil, fmt.Errorf("%w: archive %s is empty", common.ErrValidation, rec.ID)
	}

	root := manifest.Entities[0]

	// validate hints before touching anything
	if needsParentHint(root.Type, root.ParentID) && req.Hints.ParentID == "" {
		return nil, fmt.Errorf("%w: restore of %s requires a destination parent hint", common.ErrValidation, root.Type)
	}

	byID := make(map[string]*entities.Descriptor, len(manifest.Entities))
	for _, d := range manifest.Entities {
		byID[d.ID] = d
	}

	result := &models.RestoreResult{}

	if root.Type == models.TargetSystem {
		// system snapshot: the pseudo-root itself is not reconstructed,
		// only its children (the tenant's cabinets)
		result.EntityID = root.ID
		s.restoreChildren(ctx, root, root.ID, byID, content, result)
	} else {
		parent := req.Hints.ParentID
		if parent == "" {
			parent = root.ParentID
		}
		entityID, err := s.reconstruct(ctx, root, content[root.ID], parent)
		if err != nil {
			return nil, err
		}
		result.EntityID = entityID
		s.restoreChildren(ctx, root, entityID, byID, content, result)
	}

	restoreRec, err := s.record(ctx, req, rec.TenantID, root.Type, result, map[string]any{
		"backup_id":    rec.ID,
		"backup_type":  rec.Type,
		"entity_count": len(manifest.Entities),
	})
	if err != nil {
		return nil, err
	}
	result.Record = restoreRec
	return result, nil
}

func (s *RestoreService) restoreFromVersion(ctx context.Context, req RestoreRequest) (*models.RestoreResult, error) {
	rec, err := s.repomanager.Versions(s.db).GetByID(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	content, err := s.blobs.Get(ctx, rec.BlobKey)
	if err != nil {
		return nil, err
	}

	d := &entities.Descriptor{
		ID:       rec.TargetID,
		Type:     rec.TargetType,
		Metadata: rec.Metadata,
	}

	svc, err := s.registry.For(d.Type)
	if err != nil {
		return nil, err
	}
	exists, err := svc.Exists(ctx, d.ID)
	if err != nil {
		return nil, err
	}

	var entityID string
	if exists {
		// reverting a surviving entity attaches a new version in place;
		// no destination is consulted
		if _, err := svc.CreateNewVersionOf(ctx, d.ID, d, content); err != nil {
			return nil, err
		}
		entityID = d.ID
	} else {
		// the version row records no parent, so recreating the entity
		// needs an explicit destination
		if req.Hints.ParentID == "" {
			return nil, fmt.Errorf("%w: restore of deleted %s requires a destination parent hint", common.ErrValidation, rec.TargetType)
		}
		entityID, err = svc.CreateFromRestore(ctx, d, content, req.Hints.ParentID)
		if err != nil {
			return nil, err
		}
	}

	result := &models.RestoreResult{EntityID: entityID}

	tenantID := ""
	if t, ok := rec.Metadata["tenant_id"].(string); ok {
		tenantID = t
	}
	restoreRec, err := s.record(ctx, req, tenantID, rec.TargetType, result, map[string]any{
		"version_id":     rec.ID,
		"version_number": rec.VersionNumber,
	})
	if err != nil {
		return nil, err
	}
	result.Record = restoreRec
	return result, nil
}

// reconstruct hands a snapshot to the entity collaborator: a new version if
// the entity survived, a fresh entity under parentID otherwise.
func (s *RestoreService) reconstruct(ctx context.Context, d *entities.Descriptor, content []byte, parentID string) (string, error) {
	svc, err := s.registry.For(d.Type)
	if err != nil {
		return "", err
	}

	exists, err := svc.Exists(ctx, d.ID)
	if err != nil {
		return "", err
	}

	if exists {
		if _, err := svc.CreateNewVersionOf(ctx, d.ID, d, content); err != nil {
			return "", err
		}
		return d.ID, nil
	}

	return svc.CreateFromRestore(ctx, d, content, parentID)
}

// restoreChildren walks the recorded children of parent depth-first. A failed
// child is logged, recorded as a warning and skipped; its own descendants are
// skipped with it.
func (s *RestoreService) restoreChildren(ctx context.Context, parent *entities.Descriptor, newParentID string, byID map[string]*entities.Descriptor, content map[string][]byte, result *models.RestoreResult) {
	for _, ref := range parent.Children {
		child, ok := byID[ref.ID]
		if !ok {
			result.Warnings = append(result.Warnings, models.ChildFailure{
				ChildID:   ref.ID,
				ChildType: string(ref.Type),
				Reason:    "descriptor missing from archive",
			})
			continue
		}

		childID, err := s.reconstruct(ctx, child, content[child.ID], newParentID)
		if err != nil {
			s.logger.Warn(ctx, "child restore failed, skipping subtree",
				"child_id", child.ID, "child_type", string(child.Type), "error", err.Error())
			result.Warnings = append(result.Warnings, models.ChildFailure{
				ChildID:   child.ID,
				ChildType: string(child.Type),
				Reason:    err.Error(),
			})
			continue
		}

		s.restoreChildren(ctx, child, childID, byID, content, result)
	}
}

// record persists the restore audit row and emits the audit event.
func (s *RestoreService) record(ctx context.Context, req RestoreRequest, tenantID string, targetType models.TargetType, result *models.RestoreResult, sourceMeta map[string]any) (*models.RestoreRecord, error) {
	metadata := map[string]any{
		"source": sourceMeta,
	}
	if len(result.Warnings) > 0 {
		metadata["child_failures"] = result.Warnings
	}

	rec := &models.RestoreRecord{
		ID:                    uuid.New().String(),
		SourceType:            req.SourceType,
		SourceID:              req.SourceID,
		TargetType:            targetType,
		ReconstructedTargetID: result.EntityID,
		TenantID:              tenantID,
		TriggeredBy:           req.TriggeredBy,
		Metadata:              metadata,
		CreatedAt:             time.Now().UTC(),
	}

	if err := s.repomanager.Restores(s.db).Create(ctx, rec); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, req.TriggeredBy, "restore", string(targetType), result.EntityID,
		map[string]any{
			"restore_id":  rec.ID,
			"source_type": string(req.SourceType),
			"source_id":   req.SourceID,
			"warnings":    len(result.Warnings),
		})

	return rec, nil
}
