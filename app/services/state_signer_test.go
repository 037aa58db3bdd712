package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStateSecret = "test-oauth-cookie-secret-32-chars!!"

func createTestStateSigner(t *testing.T) StateSigner {
	t.Helper()
	signer, err := NewStateSigner(testStateSecret, 5*time.Minute)
	require.NoError(t, err)
	return signer
}

func TestNewStateSigner(t *testing.T) {
	t.Run("ValidConfiguration", func(t *testing.T) {
		signer, err := NewStateSigner(testStateSecret, 5*time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, signer)
	})

	t.Run("MissingSecret", func(t *testing.T) {
		_, err := NewStateSigner("", 5*time.Minute)
		assert.Error(t, err)
	})

	t.Run("NonPositiveTTLFallsBackToDefault", func(t *testing.T) {
		signer, err := NewStateSigner(testStateSecret, 0)
		require.NoError(t, err)
		impl, ok := signer.(*StateSignerImpl)
		require.True(t, ok)
		assert.Equal(t, utils.OAuthStateTTL, impl.ttl)
	})
}

func TestStateSignerSignAndVerify(t *testing.T) {
	signer := createTestStateSigner(t)

	t.Run("RoundTrip", func(t *testing.T) {
		state, err := signer.Sign(models.PlatformTwitter, "nonce-abc", "pkce-hash-xyz", "https://app.example.com/connected")
		require.NoError(t, err)
		require.NotEmpty(t, state)

		claims, err := signer.Verify(state)
		require.NoError(t, err)
		assert.Equal(t, models.PlatformTwitter, claims.Platform)
		assert.Equal(t, "nonce-abc", claims.Nonce)
		assert.Equal(t, "pkce-hash-xyz", claims.PKCEHash)
		assert.Equal(t, "https://app.example.com/connected", claims.RedirectURI)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	})

	t.Run("RoundTripWithoutPKCE", func(t *testing.T) {
		state, err := signer.Sign(models.PlatformLinkedIn, "nonce-def", "", "")
		require.NoError(t, err)

		claims, err := signer.Verify(state)
		require.NoError(t, err)
		assert.Empty(t, claims.PKCEHash)
	})

	t.Run("InvalidPlatform", func(t *testing.T) {
		_, err := signer.Sign(models.Platform("myspace"), "nonce", "", "")
		assert.Error(t, err)
	})

	t.Run("MissingNonce", func(t *testing.T) {
		_, err := signer.Sign(models.PlatformTwitter, "", "", "")
		assert.Error(t, err)
	})
}

func TestStateSignerVerifyRejections(t *testing.T) {
	signer := createTestStateSigner(t)

	t.Run("GarbageToken", func(t *testing.T) {
		_, err := signer.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrStateInvalid)
	})

	t.Run("TamperedToken", func(t *testing.T) {
		state, err := signer.Sign(models.PlatformTwitter, "nonce-abc", "", "")
		require.NoError(t, err)

		tampered := state[:len(state)-4] + "AAAA"
		_, err = signer.Verify(tampered)
		assert.ErrorIs(t, err, ErrStateInvalid)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := NewStateSigner("a-completely-different-secret-here", 5*time.Minute)
		require.NoError(t, err)

		state, err := other.Sign(models.PlatformTwitter, "nonce-abc", "", "")
		require.NoError(t, err)

		_, err = signer.Verify(state)
		assert.ErrorIs(t, err, ErrStateInvalid)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		past := utils.UTCNow().Add(-10 * time.Minute)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"platform": models.PlatformTwitter.String(),
			"nonce":    "nonce-abc",
			"iat":      past.Unix(),
			"exp":      past.Add(time.Minute).Unix(),
		})
		state, err := token.SignedString([]byte(testStateSecret))
		require.NoError(t, err)

		_, err = signer.Verify(state)
		assert.ErrorIs(t, err, ErrStateExpired)
	})

	t.Run("UnknownPlatformInClaims", func(t *testing.T) {
		now := utils.UTCNow()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"platform": "myspace",
			"nonce":    "nonce-abc",
			"iat":      now.Unix(),
			"exp":      now.Add(time.Minute).Unix(),
		})
		state, err := token.SignedString([]byte(testStateSecret))
		require.NoError(t, err)

		_, err = signer.Verify(state)
		assert.ErrorIs(t, err, ErrStateInvalid)
	})
}
