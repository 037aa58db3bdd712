package services

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVaultKey() string {
	return hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func createTestVault(t *testing.T) CredentialVault {
	t.Helper()
	vault, err := NewCredentialVault(testVaultKey())
	require.NoError(t, err)
	return vault
}

func TestNewCredentialVault(t *testing.T) {
	t.Run("ValidKey", func(t *testing.T) {
		vault, err := NewCredentialVault(testVaultKey())
		require.NoError(t, err)
		assert.NotNil(t, vault)
	})

	t.Run("NotHex", func(t *testing.T) {
		_, err := NewCredentialVault("zz-not-hex")
		assert.ErrorIs(t, err, ErrVaultKeyInvalid)
	})

	t.Run("WrongLength", func(t *testing.T) {
		_, err := NewCredentialVault(hex.EncodeToString([]byte("short")))
		assert.ErrorIs(t, err, ErrVaultKeyInvalid)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := NewCredentialVault("")
		assert.ErrorIs(t, err, ErrVaultKeyInvalid)
	})
}

func TestCredentialVaultSealOpen(t *testing.T) {
	vault := createTestVault(t)

	t.Run("RoundTrip", func(t *testing.T) {
		sealed, err := vault.Seal("ya29.provider-access-token")
		require.NoError(t, err)
		require.NotEmpty(t, sealed)
		assert.NotContains(t, sealed, "ya29")

		opened, err := vault.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "ya29.provider-access-token", opened)
	})

	t.Run("FreshNoncePerSeal", func(t *testing.T) {
		first, err := vault.Seal("same-plaintext")
		require.NoError(t, err)
		second, err := vault.Seal("same-plaintext")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("EmptyPlaintext", func(t *testing.T) {
		sealed, err := vault.Seal("")
		require.NoError(t, err)
		opened, err := vault.Open(sealed)
		require.NoError(t, err)
		assert.Empty(t, opened)
	})
}

func TestCredentialVaultOpenRejections(t *testing.T) {
	vault := createTestVault(t)

	t.Run("NotBase64", func(t *testing.T) {
		_, err := vault.Open("!!! definitely not base64 !!!")
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})

	t.Run("TooShort", func(t *testing.T) {
		_, err := vault.Open(base64.StdEncoding.EncodeToString([]byte("abc")))
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})

	t.Run("TamperedCiphertext", func(t *testing.T) {
		sealed, err := vault.Seal("secret-token")
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(sealed)
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff
		tampered := base64.StdEncoding.EncodeToString(raw)

		_, err = vault.Open(tampered)
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})

	t.Run("DifferentKey", func(t *testing.T) {
		other, err := NewCredentialVault(hex.EncodeToString([]byte(strings.Repeat("k", 32))))
		require.NoError(t, err)

		sealed, err := other.Seal("secret-token")
		require.NoError(t, err)

		_, err = vault.Open(sealed)
		assert.ErrorIs(t, err, ErrCiphertextInvalid)
	})
}
