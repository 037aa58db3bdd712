package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adaptedTweet(t *testing.T) *adaptation.AdaptedContent {
	t.Helper()
	content, err := adaptation.Adapt("Ship it #launch", models.PlatformTwitter, nil)
	require.NoError(t, err)
	return content
}

// overrideEndpoint points a platform's publish endpoint at a test server for
// the duration of one test
func overrideEndpoint(t *testing.T, platform models.Platform, url string) {
	t.Helper()
	original := publishEndpoints[platform]
	publishEndpoints[platform] = url
	t.Cleanup(func() { publishEndpoints[platform] = original })
}

func TestPublisherDryRun(t *testing.T) {
	publisher := NewPublisher()

	result, err := publisher.Publish(context.Background(), models.PlatformTwitter, utils.DummyTokenPrefix+"abc123", adaptedTweet(t))
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, models.PlatformTwitter, result.Platform)
	assert.True(t, strings.HasPrefix(result.ExternalID, "dry-run-"))
	assert.False(t, result.PublishedAt.IsZero())
}

func TestPublisherPermanentFailures(t *testing.T) {
	publisher := NewPublisher()
	ctx := context.Background()

	t.Run("UnsupportedPlatform", func(t *testing.T) {
		_, err := publisher.Publish(ctx, models.Platform("myspace"), "token", adaptedTweet(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, adaptation.ErrUnsupportedPlatform)
		assert.False(t, IsTransient(err))
	})

	t.Run("EmptyToken", func(t *testing.T) {
		_, err := publisher.Publish(ctx, models.PlatformTwitter, "", adaptedTweet(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCredentialsRejected)
		assert.False(t, IsTransient(err))
	})

	t.Run("ContentFailsPlatformRules", func(t *testing.T) {
		content := &adaptation.AdaptedContent{
			Platform: models.PlatformTwitter,
			Text:     strings.Repeat("a", 500),
		}
		_, err := publisher.Publish(ctx, models.PlatformTwitter, utils.DummyTokenPrefix+"abc", content)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrContentRejected)
		assert.False(t, IsTransient(err))
	})
}

func TestPublisherHTTPStatusClassification(t *testing.T) {
	publisher := NewPublisher()
	ctx := context.Background()

	serve := func(t *testing.T, status int, body string) {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer real-token", r.Header.Get("Authorization"))
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		t.Cleanup(srv.Close)
		overrideEndpoint(t, models.PlatformTwitter, srv.URL)
	}

	t.Run("CreatedParsesNestedID", func(t *testing.T) {
		serve(t, http.StatusCreated, `{"data":{"id":"1790000000000000001"}}`)
		result, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.NoError(t, err)
		assert.Equal(t, "1790000000000000001", result.ExternalID)
		assert.False(t, result.DryRun)
	})

	t.Run("OKParsesTopLevelID", func(t *testing.T) {
		serve(t, http.StatusOK, `{"id":"post-42"}`)
		result, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.NoError(t, err)
		assert.Equal(t, "post-42", result.ExternalID)
	})

	t.Run("ServerErrorIsTransient", func(t *testing.T) {
		serve(t, http.StatusInternalServerError, `{"error":"oops"}`)
		_, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("RateLimitIsTransient", func(t *testing.T) {
		serve(t, http.StatusTooManyRequests, `{"error":"slow down"}`)
		_, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("UnauthorizedIsPermanent", func(t *testing.T) {
		serve(t, http.StatusUnauthorized, `{"error":"bad token"}`)
		_, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCredentialsRejected)
		assert.False(t, IsTransient(err))
	})

	t.Run("BadRequestIsPermanent", func(t *testing.T) {
		serve(t, http.StatusBadRequest, `{"error":"duplicate content"}`)
		_, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrContentRejected)
		assert.False(t, IsTransient(err))
	})

	t.Run("ConnectionRefusedIsTransient", func(t *testing.T) {
		overrideEndpoint(t, models.PlatformTwitter, "http://127.0.0.1:1")
		_, err := publisher.Publish(ctx, models.PlatformTwitter, "real-token", adaptedTweet(t))
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.True(t, IsTransient(newTransientError(models.PlatformTwitter, errors.New("timeout"))))
	assert.False(t, IsTransient(newPermanentError(models.PlatformTwitter, errors.New("rejected"))))
}

func TestPublishErrorMessage(t *testing.T) {
	err := newTransientError(models.PlatformFacebook, errors.New("status 503"))
	assert.Contains(t, err.Error(), "facebook")
	assert.Contains(t, err.Error(), "transient")
	assert.ErrorContains(t, newPermanentError(models.PlatformTwitter, errors.New("x")), "permanent")
}
