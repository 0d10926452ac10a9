package models

import "time"

// VersionRecord is an immutable, monotonically numbered snapshot of an
// entity. Unique on (TargetID, VersionNumber); numbers are strictly
// increasing per target with no gaps under concurrent writers.
type VersionRecord struct {
	ID            string
	TargetID      string
	TargetType    TargetType
	VersionNumber int64
	// BlobKey locates the snapshot content in object storage.
	BlobKey   string
	Metadata  map[string]any
	CreatedBy string
	CreatedAt time.Time
}

// VersionContent is the downloaded content of a version. If the blob parses
// as JSON, Document holds the parsed value and Raw is nil; otherwise Raw
// carries the bytes untouched.
type VersionContent struct {
	Metadata map[string]any
	Document any
	Raw      []byte
}

// VersionDiff is the result of comparing two versions: metadata keys whose
// values differ (old vs new) and whether the content bytes are equal.
// No semantic content diff is computed.
type VersionDiff struct {
	MetadataDiff map[string][2]any
	ContentEqual bool
}
