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

// ScheduleHandlerInterface defines the contract for schedule handlers
type ScheduleHandlerInterface interface {
	CreateSchedule(c fiber.Ctx) error
	CancelSchedule(c fiber.Ctx) error
	ListSchedules(c fiber.Ctx) error
	ListDueSchedules(c fiber.Ctx) error
}

// ScheduleHandler handles schedule-related HTTP requests
type ScheduleHandler struct {
	scheduleFlow businessflow.ScheduleFlow
	validator    *validator.Validate
}

func (h *ScheduleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ScheduleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(scheduleFlow businessflow.ScheduleFlow) *ScheduleHandler {
	return &ScheduleHandler{
		scheduleFlow: scheduleFlow,
		validator:    validator.New(),
	}
}

// CreateSchedule pins the item's current version and queues a publish action
func (h *ScheduleHandler) CreateSchedule(c fiber.Ctx) error {
	itemUUID := c.Params("uuid")
	if itemUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Content item UUID is required", "MISSING_CONTENT_UUID", nil)
	}

	var req dto.CreateScheduleRequest
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

	result, err := h.scheduleFlow.CreateSchedule(h.createRequestContext(c, "/api/v1/content/"+itemUUID+"/schedule"), &req, metadata)
	if err != nil {
		if businessflow.IsContentItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Content item not found", "CONTENT_NOT_FOUND", nil)
		}
		if businessflow.IsNotApproved(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Content item is not approved", "CONTENT_NOT_APPROVED", nil)
		}
		if businessflow.IsContentVersionMissing(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Content item has no current version", "CONTENT_VERSION_MISSING", nil)
		}
		if businessflow.IsScheduleTimeInPast(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Scheduled time must be in the future", "SCHEDULE_TIME_IN_PAST", nil)
		}
		if businessflow.IsInvalidPlatform(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported platform", "INVALID_PLATFORM", nil)
		}

		log.Println("Schedule creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Schedule creation failed", "SCHEDULE_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Schedule created successfully", fiber.Map{
		"message":      result.Message,
		"uuid":         result.UUID,
		"status":       result.Status,
		"version":      result.Version,
		"scheduled_at": result.ScheduledAt,
	})
}

// CancelSchedule cancels a pending or due schedule. Cancellation loses against
// a concurrent claim; the loser gets a conflict.
func (h *ScheduleHandler) CancelSchedule(c fiber.Ctx) error {
	scheduleUUID := c.Params("uuid")
	if scheduleUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule UUID is required", "MISSING_SCHEDULE_UUID", nil)
	}

	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	req := &dto.CancelScheduleRequest{ScheduleUUID: scheduleUUID}

	result, err := h.scheduleFlow.CancelSchedule(h.createRequestContext(c, "/api/v1/schedules/"+scheduleUUID), organizationID, req, metadata)
	if err != nil {
		if businessflow.IsScheduleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Schedule not found", "SCHEDULE_NOT_FOUND", nil)
		}
		if businessflow.IsScheduleNotCancellable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Schedule cannot be canceled in its current state", "SCHEDULE_NOT_CANCELLABLE", nil)
		}

		log.Println("Schedule cancellation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Schedule cancellation failed", "SCHEDULE_CANCELLATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule canceled successfully", fiber.Map{
		"message": result.Message,
		"status":  result.Status,
	})
}

// ListSchedules returns the organization's schedules with filters and pagination
func (h *ScheduleHandler) ListSchedules(c fiber.Ctx) error {
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

	req := &dto.ListSchedulesRequest{
		OrganizationID: organizationID,
		Page:           page,
		PageSize:       pageSize,
	}
	if platform := c.Query("platform"); platform != "" {
		req.Platform = &platform
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.scheduleFlow.ListSchedules(h.createRequestContext(c, "/api/v1/schedules"), req)
	if err != nil {
		log.Println("List schedules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list schedules", "LIST_SCHEDULES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedules retrieved successfully", fiber.Map{
		"schedules": result.Schedules,
		"total":     result.Total,
	})
}

// ListDueSchedules returns the organization's schedules whose time has arrived
func (h *ScheduleHandler) ListDueSchedules(c fiber.Ctx) error {
	organizationID, ok := c.Locals("organization_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Organization ID not found in context", "MISSING_ORGANIZATION_ID", nil)
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit", "50")); err == nil && v > 0 {
		limit = v
	}
	if limit > 200 {
		limit = 200
	}

	result, err := h.scheduleFlow.ListDueSchedules(h.createRequestContext(c, "/api/v1/content/schedules/due"), organizationID, limit)
	if err != nil {
		log.Println("List due schedules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list due schedules", "LIST_DUE_SCHEDULES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Due schedules retrieved successfully", fiber.Map{
		"schedules": result.Schedules,
		"total":     result.Total,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ScheduleHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
