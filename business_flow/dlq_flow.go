// Package businessflow contains the core business logic and use cases for DLQ triage
package businessflow

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
	"github.com/xuri/excelize/v2"
)

// DLQFlow handles dead-letter triage: listing, replay and export
type DLQFlow interface {
	ListEntries(ctx context.Context, req *dto.ListDLQRequest) (*dto.ListDLQResponse, error)
	ReplayEntry(ctx context.Context, req *dto.ReplayDLQRequest, metadata *ClientMetadata) (*dto.ReplayDLQResponse, error)
	ExportEntries(ctx context.Context) ([]byte, error)
}

// DLQFlowImpl implements the DLQ business flow
type DLQFlowImpl struct {
	dlqRepo      repository.PublishDLQRepository
	scheduleRepo repository.ScheduleRepository
}

// NewDLQFlow creates a new DLQ flow instance
func NewDLQFlow(
	dlqRepo repository.PublishDLQRepository,
	scheduleRepo repository.ScheduleRepository,
) DLQFlow {
	return &DLQFlowImpl{
		dlqRepo:      dlqRepo,
		scheduleRepo: scheduleRepo,
	}
}

// ListEntries returns dead-lettered publishes in chronological order
func (s *DLQFlowImpl) ListEntries(ctx context.Context, req *dto.ListDLQRequest) (*dto.ListDLQResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid pagination", err)
	}

	filter := models.PublishDLQFilter{}
	if req.Platform != nil {
		platform := models.Platform(*req.Platform)
		if !platform.Valid() {
			return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid platform filter", ErrInvalidPlatform)
		}
		filter.Platform = &platform
	}

	entries, err := s.dlqRepo.ByFilter(ctx, filter, "created_at ASC, id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("DLQ_LIST_FAILED", "Failed to list DLQ entries", err)
	}

	total, err := s.dlqRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("DLQ_LIST_FAILED", "Failed to count DLQ entries", err)
	}

	resp := &dto.ListDLQResponse{Total: total}
	for _, entry := range entries {
		d, err := s.toDLQEntryDTO(ctx, entry)
		if err != nil {
			return nil, err
		}
		resp.Entries = append(resp.Entries, d)
	}
	return resp, nil
}

// ReplayEntry re-enqueues a dead-lettered publish as a fresh schedule for the
// same pinned version and platform. The DLQ row stays; the queue is append-only.
func (s *DLQFlowImpl) ReplayEntry(ctx context.Context, req *dto.ReplayDLQRequest, metadata *ClientMetadata) (*dto.ReplayDLQResponse, error) {
	entry, err := s.dlqRepo.ByID(ctx, req.EntryID)
	if err != nil {
		return nil, NewBusinessError("DLQ_LOOKUP_FAILED", "Failed to lookup DLQ entry", err)
	}
	if entry == nil {
		return nil, NewBusinessError("DLQ_NOT_FOUND", "DLQ entry not found", ErrDLQEntryNotFound)
	}

	original, err := s.scheduleRepo.ByID(ctx, entry.ScheduleID)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LOOKUP_FAILED", "Failed to lookup original schedule", err)
	}
	if original == nil {
		return nil, NewBusinessError("SCHEDULE_NOT_FOUND", "Original schedule not found", ErrScheduleNotFound)
	}

	scheduledAt := utils.UTCNow()
	if req.ScheduledAt != nil {
		if req.ScheduledAt.Before(scheduledAt) {
			return nil, NewBusinessError("REPLAY_VALIDATION_FAILED", "Replay validation failed", ErrScheduleTimeInPast)
		}
		scheduledAt = req.ScheduledAt.UTC()
	}

	replay := &models.Schedule{
		UUID:             uuid.New(),
		OrganizationID:   original.OrganizationID,
		ContentItemID:    original.ContentItemID,
		ContentVersionID: original.ContentVersionID,
		Platform:         original.Platform,
		ScheduledAt:      scheduledAt,
		Status:           models.ScheduleStatusPending,
		MediaURLs:        original.MediaURLs,
		AdaptedContent:   original.AdaptedContent,
		CreatedAt:        utils.UTCNow(),
	}
	if err := s.scheduleRepo.Save(ctx, replay); err != nil {
		return nil, NewBusinessError("REPLAY_FAILED", "Failed to create replay schedule", err)
	}

	return &dto.ReplayDLQResponse{
		Message:      "Entry replayed successfully",
		ScheduleUUID: replay.UUID.String(),
		ScheduledAt:  replay.ScheduledAt.Format(time.RFC3339),
	}, nil
}

// ExportEntries renders the full queue as a spreadsheet for operator triage
func (s *DLQFlowImpl) ExportEntries(ctx context.Context) ([]byte, error) {
	entries, err := s.dlqRepo.ListChronological(ctx, 0, 0)
	if err != nil {
		return nil, NewBusinessError("DLQ_EXPORT_FAILED", "Failed to list DLQ entries", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "DLQ"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, NewBusinessError("DLQ_EXPORT_FAILED", "Failed to build export", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Schedule ID", "Platform", "Error", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for row, entry := range entries {
		values := []any{
			entry.ID,
			entry.ScheduleID,
			entry.Platform.String(),
			entry.Error,
			entry.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, NewBusinessError("DLQ_EXPORT_FAILED", "Failed to write export", err)
	}
	return buf.Bytes(), nil
}

func (s *DLQFlowImpl) toDLQEntryDTO(ctx context.Context, entry *models.PublishDLQ) (dto.DLQEntryDTO, error) {
	d := dto.DLQEntryDTO{
		ID:        entry.ID,
		Platform:  entry.Platform.String(),
		Error:     entry.Error,
		Payload:   entry.Payload,
		CreatedAt: entry.CreatedAt,
	}
	schedule, err := s.scheduleRepo.ByID(ctx, entry.ScheduleID)
	if err != nil {
		return d, NewBusinessError("SCHEDULE_LOOKUP_FAILED", "Failed to lookup schedule", err)
	}
	if schedule != nil {
		d.ScheduleUUID = schedule.UUID.String()
	} else {
		d.ScheduleUUID = fmt.Sprintf("%d", entry.ScheduleID)
	}
	return d, nil
}
