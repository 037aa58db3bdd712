// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/utils"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	VerifyChallenge(c fiber.Ctx) error
	HandleEvent(c fiber.Ctx) error
	ListEvents(c fiber.Ctx) error
}

// WebhookHandler handles platform webhook HTTP requests
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
}

func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow: webhookFlow,
	}
}

// VerifyChallenge answers the platform's subscription handshake by echoing the
// challenge when the verify token matches
func (h *WebhookHandler) VerifyChallenge(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	verifyToken := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	echo, err := h.webhookFlow.VerifyChallenge(h.createRequestContext(c, "/webhooks/"+provider), provider, verifyToken, challenge)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown provider", "INVALID_PLATFORM", nil)
		}
		if businessflow.IsWebhookVerifyFailed(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Verify token mismatch", "WEBHOOK_VERIFY_FAILED", nil)
		}

		log.Println("Webhook challenge failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook challenge failed", "WEBHOOK_CHALLENGE_FAILED", nil)
	}

	// The platform expects the raw challenge back, not a JSON envelope
	return c.Status(fiber.StatusOK).SendString(echo)
}

// HandleEvent ingests a signed webhook delivery. Signature check runs against
// the raw body before any parsing; redeliveries are acknowledged without side
// effects.
func (h *WebhookHandler) HandleEvent(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	rawBody := c.Body()
	signature := c.Get("X-Hub-Signature-256")

	result, err := h.webhookFlow.HandleEvent(h.createRequestContext(c, "/webhooks/"+provider), provider, rawBody, signature)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown provider", "INVALID_PLATFORM", nil)
		}
		if businessflow.IsWebhookSignatureFailed(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Signature verification failed", "WEBHOOK_SIGNATURE_FAILED", nil)
		}
		if businessflow.IsWebhookBodyMalformed(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Webhook body is not valid JSON", "WEBHOOK_BODY_MALFORMED", nil)
		}

		log.Println("Webhook ingestion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook ingestion failed", "WEBHOOK_INGESTION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, fiber.Map{
		"duplicate": result.Duplicate,
		"idem_key":  result.IdempotencyKey,
	})
}

// ListEvents returns stored engagement events for a platform
func (h *WebhookHandler) ListEvents(c fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Provider is required", "MISSING_PROVIDER", nil)
	}

	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	pageSize := 20
	if v, err := strconv.Atoi(c.Query("page_size", "20")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > 100 {
		pageSize = 100
	}

	req := &dto.ListEngagementEventsRequest{
		Platform: provider,
		Page:     page,
		PageSize: pageSize,
	}

	result, err := h.webhookFlow.ListEvents(h.createRequestContext(c, "/api/v1/webhooks/"+provider+"/events"), req)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown provider", "INVALID_PLATFORM", nil)
		}

		log.Println("List engagement events failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list events", "LIST_EVENTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Events retrieved successfully", fiber.Map{
		"events": result.Events,
		"total":  result.Total,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *WebhookHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
