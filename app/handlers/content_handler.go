// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/utils"
)

// ContentHandlerInterface defines the contract for content handlers
type ContentHandlerInterface interface {
	CreateContentItem(c fiber.Ctx) error
	CreateVersion(c fiber.Ctx) error
	SetCurrentVersion(c fiber.Ctx) error
	GetContentItem(c fiber.Ctx) error
	ListContentItems(c fiber.Ctx) error
}

// ContentHandler handles content item and version HTTP requests
type ContentHandler struct {
	contentFlow businessflow.ContentFlow
	validator   *validator.Validate
}

func (h *ContentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ContentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewContentHandler creates a new content handler
func NewContentHandler(contentFlow businessflow.ContentFlow) *ContentHandler {
	return &ContentHandler{
		contentFlow: contentFlow,
		validator:   validator.New(),
	}
}

// CreateContentItem handles the content item creation process
func (h *ContentHandler) CreateContentItem(c fiber.Ctx) error {
	var req dto.CreateContentItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	// Get client information
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	// Get authenticated organization ID from context
	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}
	req.OrganizationID = organizationID

	// Call business logic with proper context
	result, err := h.contentFlow.CreateContentItem(h.createRequestContext(c, "/api/v1/content"), &req, metadata)
	if err != nil {
		if businessflow.IsOrganizationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization not found", "ORGANIZATION_NOT_FOUND", nil)
		}
		if businessflow.IsOrganizationInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization is inactive", "ORGANIZATION_INACTIVE", nil)
		}

		log.Println("Content item creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Content item creation failed", "CONTENT_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Content item created successfully", fiber.Map{
		"message":         result.Message,
		"uuid":            result.UUID,
		"status":          result.Status,
		"current_version": result.CurrentVersion,
		"created_at":      result.CreatedAt,
	})
}

// CreateVersion appends a new immutable version to an item
func (h *ContentHandler) CreateVersion(c fiber.Ctx) error {
	itemUUID := c.Params("uuid")
	if itemUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Content item UUID is required", "MISSING_CONTENT_UUID", nil)
	}

	var req dto.CreateContentVersionRequest
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

	result, err := h.contentFlow.CreateVersion(h.createRequestContext(c, "/api/v1/content/"+itemUUID+"/versions"), &req, metadata)
	if err != nil {
		if businessflow.IsContentItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content item not found", "CONTENT_NOT_FOUND", nil)
		}
		if businessflow.IsItemArchived(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Content item is archived", "CONTENT_ARCHIVED", nil)
		}

		log.Println("Content version creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Content version creation failed", "VERSION_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Content version created successfully", fiber.Map{
		"message":    result.Message,
		"version":    result.Version,
		"is_current": result.IsCurrent,
		"created_at": result.CreatedAt,
	})
}

// SetCurrentVersion moves the current pointer to an existing version
func (h *ContentHandler) SetCurrentVersion(c fiber.Ctx) error {
	itemUUID := c.Params("uuid")
	if itemUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Content item UUID is required", "MISSING_CONTENT_UUID", nil)
	}

	var req dto.SetCurrentVersionRequest
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

	result, err := h.contentFlow.SetCurrentVersion(h.createRequestContext(c, "/api/v1/content/"+itemUUID+"/versions/current"), &req, metadata)
	if err != nil {
		if businessflow.IsContentItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content item not found", "CONTENT_NOT_FOUND", nil)
		}
		if businessflow.IsVersionNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content version not found", "VERSION_NOT_FOUND", nil)
		}

		log.Println("Set current version failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Set current version failed", "SET_CURRENT_VERSION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Current version updated successfully", fiber.Map{
		"message": result.Message,
		"version": result.Version,
	})
}

// GetContentItem returns an item with its version history
func (h *ContentHandler) GetContentItem(c fiber.Ctx) error {
	itemUUID := c.Params("uuid")
	if itemUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Content item UUID is required", "MISSING_CONTENT_UUID", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	result, err := h.contentFlow.GetContentItem(h.createRequestContext(c, "/api/v1/content/"+itemUUID), organizationID, itemUUID)
	if err != nil {
		if businessflow.IsContentItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content item not found", "CONTENT_NOT_FOUND", nil)
		}

		log.Println("Get content item failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get content item", "GET_CONTENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Content item retrieved successfully", result)
}

// ListContentItems returns the organization's items with pagination
func (h *ContentHandler) ListContentItems(c fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
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

	req := &dto.ListContentItemsRequest{
		OrganizationID: organizationID,
		Page:           page,
		PageSize:       pageSize,
	}

	result, err := h.contentFlow.ListContentItems(h.createRequestContext(c, "/api/v1/content"), req)
	if err != nil {
		log.Println("List content items failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list content items", "LIST_CONTENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Content items retrieved successfully", fiber.Map{
		"items": result.Items,
		"total": result.Total,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ContentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
