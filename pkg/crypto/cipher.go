package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the decoded key length for AES-256.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
)

var (
	// ErrInvalidKey means the configured key did not decode to 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes base64-encoded")
	// ErrIntegrity means a ciphertext failed authentication. No plaintext,
	// partial or otherwise, is ever returned alongside it.
	ErrIntegrity = errors.New("ciphertext failed integrity check")
)

// Keyring holds the process-wide field-encryption key behind a precomputed
// AEAD. It is immutable after construction and safe for concurrent use.
// The raw key is never retained, logged or re-exposed.
type Keyring struct {
	aead cipher.AEAD
}

// NewKeyring decodes a base64 key and prepares AES-256-GCM over it.
func NewKeyring(encoded string) (Keyring, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Keyring{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return Keyring{}, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return Keyring{}, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Keyring{}, fmt.Errorf("failed to create GCM: %w", err)
	}

	return Keyring{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns
// base64(nonce || ciphertext || tag). Two calls with identical plaintext
// produce distinct blobs; nonce reuse under one key would break
// confidentiality. The nonce-prefix layout leaves room to prepend a key id
// once rotation is introduced.
func (k Keyring) Encrypt(plaintext []byte) (string, error) {
	if k.aead == nil {
		return "", ErrInvalidKey
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}

	sealed := k.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt, verifying the authentication tag. Any
// malformed, truncated or tampered blob fails with ErrIntegrity.
func (k Keyring) Decrypt(blob string) ([]byte, error) {
	if k.aead == nil {
		return nil, ErrInvalidKey
	}

	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable blob", ErrIntegrity)
	}
	if len(sealed) < NonceSize {
		return nil, fmt.Errorf("%w: blob shorter than nonce", ErrIntegrity)
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// EncryptString is Encrypt for string-typed fields.
func (k Keyring) EncryptString(plaintext string) (string, error) {
	return k.Encrypt([]byte(plaintext))
}

// DecryptString is Decrypt for string-typed fields.
func (k Keyring) DecryptString(blob string) (string, error) {
	plaintext, err := k.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// GenerateKey produces a fresh random key in the encoded form expected by
// NewKeyring. Operational helper for provisioning environments.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("key generation failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
