package models

import "time"

// TenantKey is a per-tenant data-encryption key wrapped under the process
// master key with AES-256-GCM. At most one active record exists per tenant;
// rotation supersedes and purges older rows. Rows are never mutated.
type TenantKey struct {
	// TenantID is the owning tenant.
	TenantID string
	// WrappedKey is the 32-byte data key encrypted under the master key.
	WrappedKey []byte
	// Nonce is the GCM nonce used for the wrap.
	Nonce []byte
	// AuthTag authenticates the wrap.
	AuthTag   []byte
	CreatedAt time.Time
}
