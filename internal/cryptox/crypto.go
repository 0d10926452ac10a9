// Package cryptox provides the AES-256-GCM primitives used by the key vault
// and the payload cipher: sealing and opening byte buffers with an explicit
// nonce and auth tag, and deriving the process master key from a configured
// secret.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// DeriveMasterKey derives a fixed 32-byte master key from a configured secret
// and salt using Argon2id. Same inputs always produce the same key, so the
// derivation can run once at process start.
func DeriveMasterKey(secret []byte, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
}

// Seal encrypts plaintext under key with AES-256-GCM. A fresh random nonce is
// generated on every call; reusing a nonce under the same key breaks GCM, so
// callers must never cache or replay the returned nonce. The authentication
// tag is returned separately from the ciphertext.
func Seal(plaintext, key []byte) (ciphertext, nonce, tag []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = common.GenerateRandByteArray(aesgcm.NonceSize())

	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	ciphertext = sealed[:len(sealed)-TagSize]
	tag = sealed[len(sealed)-TagSize:]

	return ciphertext, nonce, tag, nil
}

// Open decrypts ciphertext produced by Seal, verifying the authentication tag
// before returning any plaintext. A tag mismatch yields common.ErrCrypto and
// no bytes.
func Open(ciphertext, nonce, tag, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce size %d", common.ErrCrypto, len(nonce))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aesgcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: bad key size %d", common.ErrCrypto, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return aesgcm, nil
}
