// Package cipher implements the tenant-scoped payload cipher: stateless
// AES-256-GCM encryption and decryption of byte buffers under keys obtained
// from the key vault.
package cipher

import (
	"context"
	"fmt"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"github.com/Frijidia/Arkiva-sub000/internal/cryptox"
	"github.com/Frijidia/Arkiva-sub000/internal/server/models"
)

// KeySource supplies tenant data keys. Implemented by keyvault.Vault.
type KeySource interface {
	GetOrCreateKey(ctx context.Context, tenantID string) ([]byte, error)
}

// PayloadCipher is stateless given its key source; Encrypt and Decrypt may
// run fully in parallel for any number of tenants.
type PayloadCipher struct {
	keys KeySource
}

// New constructs a PayloadCipher over the given key source.
func New(keys KeySource) *PayloadCipher {
	return &PayloadCipher{keys: keys}
}

// Encrypt seals plaintext under the tenant's data key with a fresh random
// nonce. The nonce is generated per call and is never the key-wrapping nonce.
func (c *PayloadCipher) Encrypt(ctx context.Context, plaintext []byte, tenantID, originalFilename string) (*models.EncryptedPayload, error) {
	key, err := c.keys.GetOrCreateKey(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ciphertext, nonce, tag, err := cryptox.Seal(plaintext, key)
	if err != nil {
		return nil, err
	}

	return &models.EncryptedPayload{
		Ciphertext:       ciphertext,
		Nonce:            nonce,
		AuthTag:          tag,
		OriginalFilename: originalFilename,
		TenantID:         tenantID,
	}, nil
}

// Decrypt verifies the auth tag and returns plaintext plus the original
// filename. Verification failure is fail-closed: common.ErrCrypto, no bytes.
func (c *PayloadCipher) Decrypt(ctx context.Context, p *models.EncryptedPayload, tenantID string) ([]byte, string, error) {
	if p == nil {
		return nil, "", fmt.Errorf("%w: missing payload", common.ErrValidation)
	}
	if p.TenantID != "" && p.TenantID != tenantID {
		return nil, "", fmt.Errorf("%w: payload belongs to another tenant", common.ErrValidation)
	}

	key, err := c.keys.GetOrCreateKey(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.Open(p.Ciphertext, p.Nonce, p.AuthTag, key)
	if err != nil {
		return nil, "", err
	}
	return plaintext, p.OriginalFilename, nil
}
