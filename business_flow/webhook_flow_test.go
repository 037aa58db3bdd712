package businessflow

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEventRepo is an in-memory EngagementEventRepository for flow tests
type fakeEventRepo struct {
	events  []*models.EngagementEvent
	saveErr error
}

func (r *fakeEventRepo) ByID(ctx context.Context, id uint) (*models.EngagementEvent, error) {
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEventRepo) ByFilter(ctx context.Context, filter models.EngagementEventFilter, orderBy string, limit, offset int) ([]*models.EngagementEvent, error) {
	return r.events, nil
}

func (r *fakeEventRepo) Save(ctx context.Context, entity *models.EngagementEvent) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	entity.ID = uint(len(r.events) + 1)
	r.events = append(r.events, entity)
	return nil
}

func (r *fakeEventRepo) SaveBatch(ctx context.Context, entities []*models.EngagementEvent) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeEventRepo) Count(ctx context.Context, filter models.EngagementEventFilter) (int64, error) {
	return int64(len(r.events)), nil
}

func (r *fakeEventRepo) Exists(ctx context.Context, filter models.EngagementEventFilter) (bool, error) {
	return len(r.events) > 0, nil
}

func (r *fakeEventRepo) ByIdempotencyKey(ctx context.Context, key string) (*models.EngagementEvent, error) {
	for _, e := range r.events {
		if e.IdempotencyKey == key {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEventRepo) ListByPlatform(ctx context.Context, platform models.Platform, limit, offset int) ([]*models.EngagementEvent, error) {
	var out []*models.EngagementEvent
	for _, e := range r.events {
		if e.Platform == platform {
			out = append(out, e)
		}
	}
	return out, nil
}

const testWebhookSecret = "webhook-signing-secret"

func testWebhookConfig() config.OAuthConfig {
	return config.OAuthConfig{
		Providers: map[string]config.OAuthProviderConfig{
			"facebook": {
				WebhookSecret:      testWebhookSecret,
				WebhookVerifyToken: "verify-me",
			},
		},
	}
}

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyChallenge(t *testing.T) {
	flow := NewWebhookFlow(&fakeEventRepo{}, testWebhookConfig(), nil)
	ctx := context.Background()

	t.Run("MatchingTokenEchoesChallenge", func(t *testing.T) {
		challenge, err := flow.VerifyChallenge(ctx, "facebook", "verify-me", "challenge-1234")
		require.NoError(t, err)
		assert.Equal(t, "challenge-1234", challenge)
	})

	t.Run("TokenMismatch", func(t *testing.T) {
		_, err := flow.VerifyChallenge(ctx, "facebook", "wrong-token", "challenge-1234")
		require.Error(t, err)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "WEBHOOK_VERIFY_FAILED", be.Code)
	})

	t.Run("UnconfiguredProviderFailsClosed", func(t *testing.T) {
		_, err := flow.VerifyChallenge(ctx, "twitter", "anything", "challenge-1234")
		require.Error(t, err)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		_, err := flow.VerifyChallenge(ctx, "myspace", "verify-me", "challenge-1234")
		require.Error(t, err)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "WEBHOOK_INVALID_PROVIDER", be.Code)
	})
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"object":"page","entry":[{"id":"entry-1","time":1717000000}],"event_type":"comment"}`)

	t.Run("ValidSignaturePersistsEvent", func(t *testing.T) {
		repo := &fakeEventRepo{}
		flow := NewWebhookFlow(repo, testWebhookConfig(), nil)

		ack, err := flow.HandleEvent(ctx, "facebook", body, signBody(body, testWebhookSecret))
		require.NoError(t, err)
		assert.False(t, ack.Duplicate)

		require.Len(t, repo.events, 1)
		saved := repo.events[0]
		assert.Equal(t, models.PlatformFacebook, saved.Platform)
		assert.Equal(t, "comment", saved.EventType)
		assert.NotEmpty(t, saved.IdempotencyKey)
		// The ack exposes the derived key so callers can correlate deliveries
		assert.Equal(t, saved.IdempotencyKey, ack.IdempotencyKey)
		assert.JSONEq(t, string(body), string(saved.Payload))
	})

	t.Run("RedeliveryAcksAsDuplicate", func(t *testing.T) {
		repo := &fakeEventRepo{}
		flow := NewWebhookFlow(repo, testWebhookConfig(), nil)

		first, err := flow.HandleEvent(ctx, "facebook", body, signBody(body, testWebhookSecret))
		require.NoError(t, err)

		ack, err := flow.HandleEvent(ctx, "facebook", body, signBody(body, testWebhookSecret))
		require.NoError(t, err)
		assert.True(t, ack.Duplicate)
		assert.Equal(t, first.IdempotencyKey, ack.IdempotencyKey)
		assert.Len(t, repo.events, 1)
	})

	t.Run("BadSignatureRejectedBeforeParsing", func(t *testing.T) {
		repo := &fakeEventRepo{}
		flow := NewWebhookFlow(repo, testWebhookConfig(), nil)

		_, err := flow.HandleEvent(ctx, "facebook", body, signBody(body, "attacker-secret"))
		require.Error(t, err)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "WEBHOOK_SIGNATURE_FAILED", be.Code)
		assert.Empty(t, repo.events)
	})

	t.Run("MissingSignatureHeader", func(t *testing.T) {
		flow := NewWebhookFlow(&fakeEventRepo{}, testWebhookConfig(), nil)
		_, err := flow.HandleEvent(ctx, "facebook", body, "")
		require.Error(t, err)
	})

	t.Run("UnconfiguredProviderRejectsAll", func(t *testing.T) {
		flow := NewWebhookFlow(&fakeEventRepo{}, testWebhookConfig(), nil)
		_, err := flow.HandleEvent(ctx, "twitter", body, signBody(body, testWebhookSecret))
		require.Error(t, err)
	})

	t.Run("MalformedJSONAfterValidSignature", func(t *testing.T) {
		malformed := []byte(`{"object":`)
		flow := NewWebhookFlow(&fakeEventRepo{}, testWebhookConfig(), nil)

		_, err := flow.HandleEvent(ctx, "facebook", malformed, signBody(malformed, testWebhookSecret))
		require.Error(t, err)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "WEBHOOK_BODY_MALFORMED", be.Code)
	})
}

func TestListEvents(t *testing.T) {
	ctx := context.Background()
	repo := &fakeEventRepo{}
	flow := NewWebhookFlow(repo, testWebhookConfig(), nil)

	body := []byte(`{"object":"page","entry":[{"id":"entry-9","time":1717000001}],"event_type":"like"}`)
	_, err := flow.HandleEvent(ctx, "facebook", body, signBody(body, testWebhookSecret))
	require.NoError(t, err)

	t.Run("ReturnsStoredEvents", func(t *testing.T) {
		resp, err := flow.ListEvents(ctx, &dto.ListEngagementEventsRequest{Platform: "facebook"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Total)
		require.Len(t, resp.Events, 1)
		assert.Equal(t, "facebook", resp.Events[0].Platform)
		assert.Equal(t, "like", resp.Events[0].EventType)
	})

	t.Run("UnknownPlatform", func(t *testing.T) {
		_, err := flow.ListEvents(ctx, &dto.ListEngagementEventsRequest{Platform: "orkut"})
		require.Error(t, err)
	})
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	assert.True(t, verifySignature(body, signBody(body, testWebhookSecret), testWebhookSecret))
	assert.False(t, verifySignature(body, signBody(body, "other"), testWebhookSecret))
	assert.False(t, verifySignature(body, "", testWebhookSecret))
	assert.False(t, verifySignature(body, "sha256=", testWebhookSecret))
	assert.False(t, verifySignature([]byte("tampered"), signBody(body, testWebhookSecret), testWebhookSecret))
}

func TestDeriveIdempotencyKey(t *testing.T) {
	envelope := &webhookEnvelope{Object: "page"}
	envelope.Entry = append(envelope.Entry, struct {
		ID   string `json:"id"`
		Time int64  `json:"time"`
	}{ID: "entry-1", Time: 1717000000})

	first := deriveIdempotencyKey(models.PlatformFacebook, envelope)
	second := deriveIdempotencyKey(models.PlatformFacebook, envelope)
	assert.Equal(t, first, second)

	other := deriveIdempotencyKey(models.PlatformInstagram, envelope)
	assert.NotEqual(t, first, other)
}
