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

// DLQHandlerInterface defines the contract for dead letter queue handlers
type DLQHandlerInterface interface {
	ListEntries(c fiber.Ctx) error
	ReplayEntry(c fiber.Ctx) error
	ExportEntries(c fiber.Ctx) error
}

// DLQHandler handles dead letter queue triage HTTP requests
type DLQHandler struct {
	dlqFlow   businessflow.DLQFlow
	validator *validator.Validate
}

func (h *DLQHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *DLQHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(dlqFlow businessflow.DLQFlow) *DLQHandler {
	return &DLQHandler{
		dlqFlow:   dlqFlow,
		validator: validator.New(),
	}
}

// ListEntries returns dead-lettered publish attempts in chronological order
func (h *DLQHandler) ListEntries(c fiber.Ctx) error {
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

	req := &dto.ListDLQRequest{
		Page:     page,
		PageSize: pageSize,
	}
	if platform := c.Query("platform"); platform != "" {
		req.Platform = &platform
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.dlqFlow.ListEntries(h.createRequestContext(c, "/api/v1/dlq"), req)
	if err != nil {
		log.Println("List DLQ entries failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list DLQ entries", "LIST_DLQ_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "DLQ entries retrieved successfully", fiber.Map{
		"entries": result.Entries,
		"total":   result.Total,
	})
}

// ReplayEntry re-enqueues a dead-lettered attempt as a fresh schedule
func (h *DLQHandler) ReplayEntry(c fiber.Ctx) error {
	entryID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || entryID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "DLQ entry ID is required", "MISSING_DLQ_ENTRY_ID", nil)
	}

	var req dto.ReplayDLQRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.EntryID = uint(entryID)

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.dlqFlow.ReplayEntry(h.createRequestContext(c, "/api/v1/dlq/"+c.Params("id")+"/replay"), &req, metadata)
	if err != nil {
		if businessflow.IsDLQEntryNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "DLQ entry not found", "DLQ_ENTRY_NOT_FOUND", nil)
		}
		if businessflow.IsScheduleTimeInPast(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Scheduled time must be in the future", "SCHEDULE_TIME_IN_PAST", nil)
		}

		log.Println("DLQ replay failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "DLQ replay failed", "DLQ_REPLAY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "DLQ entry replayed successfully", fiber.Map{
		"message":       result.Message,
		"schedule_uuid": result.ScheduleUUID,
		"scheduled_at":  result.ScheduledAt,
	})
}

// ExportEntries streams the DLQ as an Excel workbook
func (h *DLQHandler) ExportEntries(c fiber.Ctx) error {
	data, err := h.dlqFlow.ExportEntries(h.createRequestContext(c, "/api/v1/dlq/export"))
	if err != nil {
		log.Println("DLQ export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "DLQ export failed", "DLQ_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="publish_dlq.xlsx"`)
	return c.Status(fiber.StatusOK).Send(data)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *DLQHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
