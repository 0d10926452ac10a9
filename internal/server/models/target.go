// Package models defines server-side data models persisted in the database
// and the wire shapes the core exchanges with its collaborators.
package models

// TargetType identifies the kind of entity a version, backup or restore
// refers to.
type TargetType string

const (
	TargetFile    TargetType = "file"
	TargetFolder  TargetType = "folder"
	TargetDrawer  TargetType = "drawer"
	TargetCabinet TargetType = "cabinet"
	// TargetSystem is valid for backups only: a whole-system snapshot with
	// no single target entity.
	TargetSystem TargetType = "system"
)

// ValidVersionTarget reports whether t may own version records.
func ValidVersionTarget(t TargetType) bool {
	switch t {
	case TargetFile, TargetFolder, TargetDrawer, TargetCabinet:
		return true
	}
	return false
}

// ValidBackupTarget reports whether t may be backed up.
func ValidBackupTarget(t TargetType) bool {
	return t == TargetSystem || ValidVersionTarget(t)
}

// IsContainer reports whether t holds child entities that backups and
// restores recurse into.
func (t TargetType) IsContainer() bool {
	switch t {
	case TargetFolder, TargetDrawer, TargetCabinet, TargetSystem:
		return true
	}
	return false
}
