// Package keyvault manages per-tenant data-encryption keys: generation,
// wrapping under the process master key with AES-256-GCM, retrieval and
// rotation. A tenant has at most one active key at any time.
package keyvault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/cryptox"
	"github.com/Frijidia/Arkiva-sub000/internal/dbx"
	"github.com/Frijidia/Arkiva-sub000/internal/logging"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
	"github.com/Frijidia/Arkiva-sub000/internal/server/repositories/repomanager"
)

// Vault wraps and unwraps tenant data keys. The master key is derived once at
// construction and never leaves process memory; Close wipes it.
//
// All key creation and rotation for a tenant is serialized through a
// per-tenant mutex so concurrent GetOrCreateKey calls cannot observe a
// half-replaced key row.
type Vault struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger

	masterKey []byte

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex
}

// New derives the master key from the configured secret and salt and returns
// a ready Vault. An empty secret is fatal (common.ErrMissingMasterKey).
func New(db *sql.DB, rm repomanager.RepositoryManager, masterSecret, masterSalt []byte, logger logging.Logger) (*Vault, error) {
	if len(masterSecret) == 0 {
		return nil, common.ErrMissingMasterKey
	}

	return &Vault{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "keyvault"),
		masterKey:   cryptox.DeriveMasterKey(masterSecret, masterSalt),
		tenantLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close wipes the master key. The vault is unusable afterwards.
func (v *Vault) Close() {
	common.WipeByteArray(v.masterKey)
}

func (v *Vault) lockTenant(tenantID string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.tenantLocks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		v.tenantLocks[tenantID] = l
	}
	return l
}

// GetOrCreateKey returns the tenant's unwrapped 32-byte data key, generating
// and persisting a new one on first use. Callers must not retain the key
// beyond the current operation.
func (v *Vault) GetOrCreateKey(ctx context.Context, tenantID string) ([]byte, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant id", common.ErrValidation)
	}

	l := v.lockTenant(tenantID)
	l.Lock()
	defer l.Unlock()

	repo := v.repomanager.TenantKeys(v.db)

	rec, err := repo.Get(ctx, tenantID)
	if err == nil {
		return v.unwrap(rec)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	return v.createKey(ctx, tenantID)
}

// RotateKey replaces the tenant's key with a freshly generated one and purges
// the old row. This is destructive: every payload encrypted under the old key
// becomes permanently undecryptable. The caller must pass confirm=true to
// acknowledge that.
func (v *Vault) RotateKey(ctx context.Context, tenantID string, confirm bool) error {
	if tenantID == "" {
		return fmt.Errorf("%w: missing tenant id", common.ErrValidation)
	}
	if !confirm {
		return fmt.Errorf("%w: key rotation requires explicit confirmation", common.ErrValidation)
	}

	l := v.lockTenant(tenantID)
	l.Lock()
	defer l.Unlock()

	v.logger.Warn(ctx, "rotating tenant key: payloads under the old key become permanently undecryptable",
		"tenant_id", tenantID)

	key, err := v.createKey(ctx, tenantID)
	if err != nil {
		return err
	}
	common.WipeByteArray(key)

	v.logger.Info(ctx, "tenant key rotated", "tenant_id", tenantID)
	return nil
}

// createKey generates a random data key, wraps it under the master key and
// atomically replaces any prior rows for the tenant. Caller holds the tenant
// lock.
func (v *Vault) createKey(ctx context.Context, tenantID string) ([]byte, error) {
	key := common.GenerateRandByteArray(cryptox.KeySize)

	wrapped, nonce, tag, err := cryptox.Seal(key, v.masterKey)
	if err != nil {
		return nil, err
	}

	rec := &models.TenantKey{
		TenantID:   tenantID,
		WrappedKey: wrapped,
		Nonce:      nonce,
		AuthTag:    tag,
		CreatedAt:  time.Now().UTC(),
	}

	err = dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := v.repomanager.TenantKeys(tx)
		if err := repo.DeleteByTenant(ctx, tenantID); err != nil {
			return err
		}
		return repo.Create(ctx, rec)
	})
	if err != nil {
		common.WipeByteArray(key)
		return nil, err
	}

	return key, nil
}

// unwrap decrypts a stored key row under the master key. A tag mismatch means
// tampering or a wrong master key and surfaces as ErrKeyUnwrapFailed.
func (v *Vault) unwrap(rec *models.TenantKey) ([]byte, error) {
	key, err := cryptox.Open(rec.WrappedKey, rec.Nonce, rec.AuthTag, v.masterKey)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %w", common.ErrKeyUnwrapFailed, rec.TenantID, common.ErrCrypto)
	}
	return key, nil
}
