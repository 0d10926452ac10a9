// Package common defines shared constants and sentinel errors used across
// the Arkiva core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")

	// Input validation errors (bad or missing input, never retried).
	ErrValidation = errors.New("validation error")

	// Crypto errors: auth-tag mismatch, wrong or missing key material.
	// Fail-closed; no partial plaintext ever accompanies these.
	ErrCrypto = errors.New("crypto error")

	// Object-storage errors (blob put/get/delete failure).
	ErrStorage = errors.New("storage error")

	// Relational-store errors (constraint violation, connection failure).
	ErrDatabase = errors.New("database error")

	// Key lifecycle errors.
	ErrMissingMasterKey = errors.New("master key secret is not configured")
	ErrKeyUnwrapFailed  = errors.New("tenant key unwrap failed")
)
