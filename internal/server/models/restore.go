package models

import "time"

// SourceType identifies what a restore reads from.
type SourceType string

const (
	SourceBackup  SourceType = "backup"
	SourceVersion SourceType = "version"
)

// RestoreRecord is the read-only audit trail of a restore. The retention
// sweeper consults these rows to veto deletion of referenced sources.
type RestoreRecord struct {
	ID         string
	SourceType SourceType
	SourceID   string
	TargetType TargetType
	// ReconstructedTargetID is the entity the restore produced (a fresh
	// entity, or the existing one that received a new version).
	ReconstructedTargetID string
	TenantID              string
	TriggeredBy           string
	Metadata              map[string]any
	CreatedAt             time.Time
}

// ChildFailure records one descendant that could not be reconstructed during
// a container restore. The parent restore still succeeds.
type ChildFailure struct {
	ChildID   string `json:"child_id"`
	ChildType string `json:"child_type"`
	Reason    string `json:"reason"`
}

// RestoreResult distinguishes "fully restored" from "restored with
// omissions": Warnings lists every skipped descendant.
type RestoreResult struct {
	Record   *RestoreRecord
	EntityID string
	Warnings []ChildFailure
}

// DestinationHints carry replacement parent references for restores whose
// original parent may have been deleted.
type DestinationHints struct {
	// ParentID is the entity the reconstructed target is attached to.
	ParentID string
}
