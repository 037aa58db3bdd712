// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/utils"
)

// ApprovalHandlerInterface defines the contract for approval handlers
type ApprovalHandlerInterface interface {
	ApproveContent(c fiber.Ctx) error
	ListPreviews(c fiber.Ctx) error
	AdaptPreview(c fiber.Ctx) error
	PlatformCatalog(c fiber.Ctx) error
}

// ApprovalHandler handles approval and adaptation preview HTTP requests
type ApprovalHandler struct {
	approvalFlow businessflow.ApprovalFlow
	validator    *validator.Validate
}

func (h *ApprovalHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ApprovalHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalFlow businessflow.ApprovalFlow) *ApprovalHandler {
	return &ApprovalHandler{
		approvalFlow: approvalFlow,
		validator:    validator.New(),
	}
}

// ApproveContent approves the item's current version for a set of platforms
// and stores one adaptation preview per platform
func (h *ApprovalHandler) ApproveContent(c fiber.Ctx) error {
	itemUUID := c.Params("uuid")
	if itemUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Content item UUID is required", "MISSING_CONTENT_UUID", nil)
	}

	var req dto.ApproveContentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ContentItemUUID = itemUUID

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}
	req.OrganizationID = organizationID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.approvalFlow.ApproveContent(h.createRequestContext(c, "/api/v1/content/"+itemUUID+"/approve"), &req, metadata)
	if err != nil {
		if businessflow.IsContentItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content item not found", "CONTENT_NOT_FOUND", nil)
		}
		if businessflow.IsContentVersionMissing(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Content item has no current version", "CONTENT_VERSION_MISSING", nil)
		}
		if businessflow.IsItemArchived(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Content item is archived", "CONTENT_ARCHIVED", nil)
		}
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported platform", "INVALID_PLATFORM", nil)
		}

		log.Println("Content approval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Content approval failed", "APPROVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Content approved successfully", fiber.Map{
		"message":     result.Message,
		"version":     result.Version,
		"status":      result.Status,
		"previews":    result.Previews,
		"approved_at": result.ApprovedAt,
	})
}

// ListPreviews returns the stored adaptation previews for an item's version
func (h *ApprovalHandler) ListPreviews(c fiber.Ctx) error {
	itemUUID := c.Params("uuid")
	if itemUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Content item UUID is required", "MISSING_CONTENT_UUID", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	req := &dto.ListPreviewsRequest{ContentItemUUID: itemUUID}
	if v, err := strconv.Atoi(c.Query("version")); err == nil && v > 0 {
		req.Version = &v
	}

	result, err := h.approvalFlow.ListPreviews(h.createRequestContext(c, "/api/v1/content/"+itemUUID+"/previews"), organizationID, req)
	if err != nil {
		if businessflow.IsContentItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content item not found", "CONTENT_NOT_FOUND", nil)
		}
		if businessflow.IsVersionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content version not found", "VERSION_NOT_FOUND", nil)
		}

		log.Println("List previews failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list previews", "LIST_PREVIEWS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Previews retrieved successfully", result)
}

// AdaptPreview adapts raw text for a set of platforms without persisting anything
func (h *ApprovalHandler) AdaptPreview(c fiber.Ctx) error {
	var req dto.AdaptPreviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.approvalFlow.AdaptPreview(h.createRequestContext(c, "/api/v1/adapt/preview"), &req)
	if err != nil {
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported platform", "INVALID_PLATFORM", nil)
		}

		log.Println("Adapt preview failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Adapt preview failed", "ADAPT_PREVIEW_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Content adapted successfully", result)
}

// PlatformCatalog returns the per-platform adaptation rules
func (h *ApprovalHandler) PlatformCatalog(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "Platform rules retrieved successfully", fiber.Map{
		"platforms": adaptation.Catalog(),
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ApprovalHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
