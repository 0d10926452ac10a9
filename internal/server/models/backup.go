package models

import "time"

// BackupState tracks a backup request through its pipeline. FAILED is
// reachable from any state.
type BackupState string

const (
	BackupValidating  BackupState = "validating"
	BackupCollecting  BackupState = "collecting"
	BackupCompressing BackupState = "compressing"
	BackupUploading   BackupState = "uploading"
	BackupRecording   BackupState = "recording"
	BackupDone        BackupState = "done"
	BackupFailed      BackupState = "failed"
)

// BackupRecord is a point-in-time archive of one entity and, for containers,
// its subtree. Soft-deleted by the retention sweeper.
type BackupRecord struct {
	ID          string
	Type        TargetType
	TargetID    string
	TenantID    string
	BlobKey     string
	Summary     map[string]any
	TriggeredBy string
	CreatedAt   time.Time
	IsDeleted   bool
}

// BackupFilter narrows ListBackups results. Zero values match everything.
type BackupFilter struct {
	Type     TargetType
	TargetID string
	TenantID string
	Limit    int
	Offset   int
}
