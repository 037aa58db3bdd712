// Package businessflow contains the core business logic and use cases for webhook ingestion
package businessflow

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/config"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
	"github.com/redis/go-redis/v9"
)

const webhookDedupeKeyPrefix = "webhook:dedupe:"

// WebhookFlow handles platform webhook verification and event ingestion
type WebhookFlow interface {
	VerifyChallenge(ctx context.Context, platformStr, verifyToken, challenge string) (string, error)
	HandleEvent(ctx context.Context, platformStr string, rawBody []byte, signatureHeader string) (*dto.WebhookAckResponse, error)
	ListEvents(ctx context.Context, req *dto.ListEngagementEventsRequest) (*dto.ListEngagementEventsResponse, error)
}

// WebhookFlowImpl implements the webhook business flow
type WebhookFlowImpl struct {
	eventRepo   repository.EngagementEventRepository
	oauthConfig config.OAuthConfig
	rc          *redis.Client
}

// NewWebhookFlow creates a new webhook flow instance
func NewWebhookFlow(
	eventRepo repository.EngagementEventRepository,
	oauthConfig config.OAuthConfig,
	rc *redis.Client,
) WebhookFlow {
	return &WebhookFlowImpl{
		eventRepo:   eventRepo,
		oauthConfig: oauthConfig,
		rc:          rc,
	}
}

// VerifyChallenge implements the subscription handshake: echo the challenge
// iff the verify token matches the per-platform secret.
func (s *WebhookFlowImpl) VerifyChallenge(ctx context.Context, platformStr, verifyToken, challenge string) (string, error) {
	platform := models.Platform(platformStr)
	if !platform.Valid() {
		return "", NewBusinessError("WEBHOOK_INVALID_PROVIDER", "Unknown provider", ErrInvalidPlatform)
	}

	expected := s.oauthConfig.Providers[platform.String()].WebhookVerifyToken
	if expected == "" || !subtleCompare(verifyToken, expected) {
		return "", NewBusinessError("WEBHOOK_VERIFY_FAILED", "Verify token mismatch", ErrWebhookVerifyFailed)
	}
	return challenge, nil
}

// webhookEnvelope is the minimal shape shared by platform event deliveries
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID   string `json:"id"`
		Time int64  `json:"time"`
	} `json:"entry"`
	EventType string `json:"event_type"`
}

// HandleEvent verifies the HMAC-SHA256 signature over the raw body before any
// parsing, then dedupes on a delivery-derived key so redelivery acks without
// side effects.
func (s *WebhookFlowImpl) HandleEvent(ctx context.Context, platformStr string, rawBody []byte, signatureHeader string) (*dto.WebhookAckResponse, error) {
	platform := models.Platform(platformStr)
	if !platform.Valid() {
		return nil, NewBusinessError("WEBHOOK_INVALID_PROVIDER", "Unknown provider", ErrInvalidPlatform)
	}

	secret := s.oauthConfig.Providers[platform.String()].WebhookSecret
	if secret == "" || !verifySignature(rawBody, signatureHeader, secret) {
		return nil, NewBusinessError("WEBHOOK_SIGNATURE_FAILED", "Signature verification failed", ErrWebhookSignatureFailed)
	}

	// Signature is valid; malformed JSON from here is a client error, not a
	// security event
	var envelope webhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, NewBusinessError("WEBHOOK_BODY_MALFORMED", "Body is not valid JSON", ErrWebhookBodyMalformed)
	}

	idemKey := deriveIdempotencyKey(platform, &envelope)

	if s.rc != nil {
		fresh, err := s.rc.SetNX(ctx, webhookDedupeKeyPrefix+idemKey, "1", utils.WebhookDedupeTTL).Result()
		if err == nil && !fresh {
			return &dto.WebhookAckResponse{Message: "Event already processed", Duplicate: true, IdempotencyKey: idemKey}, nil
		}
	}

	// The unique index backs up the redis dedupe across cache loss
	existing, err := s.eventRepo.ByIdempotencyKey(ctx, idemKey)
	if err != nil {
		return nil, NewBusinessError("WEBHOOK_PERSIST_FAILED", "Failed to check event", err)
	}
	if existing != nil {
		return &dto.WebhookAckResponse{Message: "Event already processed", Duplicate: true, IdempotencyKey: idemKey}, nil
	}

	event := &models.EngagementEvent{
		Platform:       platform,
		IdempotencyKey: idemKey,
		EventType:      envelope.EventType,
		Payload:        json.RawMessage(rawBody),
		ReceivedAt:     utils.UTCNow(),
	}
	if err := s.eventRepo.Save(ctx, event); err != nil {
		return nil, NewBusinessError("WEBHOOK_PERSIST_FAILED", "Failed to persist event", err)
	}

	return &dto.WebhookAckResponse{Message: "Event accepted", IdempotencyKey: idemKey}, nil
}

// ListEvents returns stored engagement events for a platform, newest first
func (s *WebhookFlowImpl) ListEvents(ctx context.Context, req *dto.ListEngagementEventsRequest) (*dto.ListEngagementEventsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid pagination", err)
	}

	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return nil, NewBusinessError("WEBHOOK_INVALID_PROVIDER", "Unknown provider", ErrInvalidPlatform)
	}

	events, err := s.eventRepo.ListByPlatform(ctx, platform, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to list events", err)
	}

	total, err := s.eventRepo.Count(ctx, models.EngagementEventFilter{Platform: &platform})
	if err != nil {
		return nil, NewBusinessError("EVENT_LIST_FAILED", "Failed to count events", err)
	}

	resp := &dto.ListEngagementEventsResponse{Total: total}
	for _, e := range events {
		resp.Events = append(resp.Events, dto.EngagementEventDTO{
			Platform:   e.Platform.String(),
			EventType:  e.EventType,
			Payload:    e.Payload,
			ReceivedAt: e.ReceivedAt,
		})
	}
	return resp, nil
}

// verifySignature checks an X-Hub-Signature-256 style header against the raw body
func verifySignature(rawBody []byte, signatureHeader, secret string) bool {
	signature := strings.TrimPrefix(signatureHeader, "sha256=")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// deriveIdempotencyKey maps a delivery onto a stable key so platform
// redelivery hits the same record
func deriveIdempotencyKey(platform models.Platform, envelope *webhookEnvelope) string {
	var entryID string
	var entryTime int64
	if len(envelope.Entry) > 0 {
		entryID = envelope.Entry[0].ID
		entryTime = envelope.Entry[0].Time
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%s:%s:%d", platform, envelope.Object, entryID, entryTime))
	return hex.EncodeToString(sum[:])
}

func subtleCompare(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
