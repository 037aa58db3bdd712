// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/publora/publora/app/dto"
	businessflow "github.com/publora/publora/business_flow"
	"github.com/publora/publora/utils"
)

// OrganizationHandlerInterface defines the contract for organization handlers
type OrganizationHandlerInterface interface {
	CreateOrganization(c fiber.Ctx) error
	GetOrganization(c fiber.Ctx) error
	DeactivateOrganization(c fiber.Ctx) error
}

// OrganizationHandler handles organization-related HTTP requests
type OrganizationHandler struct {
	organizationFlow businessflow.OrganizationFlow
	validator        *validator.Validate
}

func (h *OrganizationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *OrganizationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewOrganizationHandler creates a new organization handler
func NewOrganizationHandler(organizationFlow businessflow.OrganizationFlow) *OrganizationHandler {
	return &OrganizationHandler{
		organizationFlow: organizationFlow,
		validator:        validator.New(),
	}
}

// CreateOrganization handles tenant creation and issues the initial token pair
func (h *OrganizationHandler) CreateOrganization(c fiber.Ctx) error {
	var req dto.CreateOrganizationRequest
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

	// Call business logic with proper context
	result, err := h.organizationFlow.CreateOrganization(h.createRequestContext(c, "/api/v1/organizations"), &req, metadata)
	if err != nil {
		log.Println("Organization creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Organization creation failed", "ORGANIZATION_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Organization created successfully", fiber.Map{
		"message":       result.Message,
		"uuid":          result.UUID,
		"name":          result.Name,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"created_at":    result.CreatedAt,
	})
}

// GetOrganization returns the authenticated organization
func (h *OrganizationHandler) GetOrganization(c fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	result, err := h.organizationFlow.GetOrganization(h.createRequestContext(c, "/api/v1/organizations/me"), organizationID)
	if err != nil {
		if businessflow.IsOrganizationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Organization not found", "ORGANIZATION_NOT_FOUND", nil)
		}

		log.Println("Get organization failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get organization", "GET_ORGANIZATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Organization retrieved successfully", result)
}

// DeactivateOrganization soft-disables a tenant; its schedules stop publishing
func (h *OrganizationHandler) DeactivateOrganization(c fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.organizationFlow.DeactivateOrganization(h.createRequestContext(c, "/api/v1/organizations/me"), organizationID, metadata)
	if err != nil {
		if businessflow.IsOrganizationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Organization not found", "ORGANIZATION_NOT_FOUND", nil)
		}
		if businessflow.IsOrganizationInactive(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Organization is already inactive", "ORGANIZATION_INACTIVE", nil)
		}

		log.Println("Organization deactivation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Organization deactivation failed", "ORGANIZATION_DEACTIVATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Organization deactivated successfully", fiber.Map{
		"message": result.Message,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *OrganizationHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
