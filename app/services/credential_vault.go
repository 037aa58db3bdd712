package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Credential vault error constants
var (
	ErrVaultKeyInvalid   = errors.New("vault key must be 32 bytes (hex encoded)")
	ErrCiphertextInvalid = errors.New("ciphertext is malformed or tampered")
)

// CredentialVault seals and opens provider credentials. Tokens are stored as
// ciphertext only and decrypted at the point of use.
type CredentialVault interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// CredentialVaultImpl implements CredentialVault with ChaCha20-Poly1305.
// Sealed form is base64(nonce || ciphertext).
type CredentialVaultImpl struct {
	key []byte
}

// NewCredentialVault creates a vault from a hex-encoded 32-byte key
func NewCredentialVault(hexKey string) (CredentialVault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultKeyInvalid, err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrVaultKeyInvalid
	}
	return &CredentialVaultImpl{key: key}, nil
}

// Seal encrypts the plaintext under a fresh random nonce
func (v *CredentialVaultImpl) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(v.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (v *CredentialVaultImpl) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertextInvalid, err)
	}

	aead, err := chacha20poly1305.New(v.key)
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", ErrCiphertextInvalid
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plaintext), nil
}
