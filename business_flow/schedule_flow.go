// Package businessflow contains the core business logic and use cases for scheduling workflows
package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/publora/publora/adaptation"
	"github.com/publora/publora/app/dto"
	"github.com/publora/publora/models"
	"github.com/publora/publora/repository"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// ScheduleFlow handles the schedule lifecycle up to the worker boundary
type ScheduleFlow interface {
	CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest, metadata *ClientMetadata) (*dto.CreateScheduleResponse, error)
	CancelSchedule(ctx context.Context, organizationID uint, req *dto.CancelScheduleRequest, metadata *ClientMetadata) (*dto.CancelScheduleResponse, error)
	ListSchedules(ctx context.Context, req *dto.ListSchedulesRequest) (*dto.ListSchedulesResponse, error)
	ListDueSchedules(ctx context.Context, organizationID uint, limit int) (*dto.ListSchedulesResponse, error)
}

// ScheduleFlowImpl implements the schedule business flow
type ScheduleFlowImpl struct {
	itemRepo     repository.ContentItemRepository
	versionRepo  repository.ContentVersionRepository
	scheduleRepo repository.ScheduleRepository
	db           *gorm.DB
}

// NewScheduleFlow creates a new schedule flow instance
func NewScheduleFlow(
	itemRepo repository.ContentItemRepository,
	versionRepo repository.ContentVersionRepository,
	scheduleRepo repository.ScheduleRepository,
	db *gorm.DB,
) ScheduleFlow {
	return &ScheduleFlowImpl{
		itemRepo:     itemRepo,
		versionRepo:  versionRepo,
		scheduleRepo: scheduleRepo,
		db:           db,
	}
}

// CreateSchedule pins the item's current version and precomputes the adapted
// payload, so later edits to the item cannot change what gets published.
func (s *ScheduleFlowImpl) CreateSchedule(ctx context.Context, req *dto.CreateScheduleRequest, metadata *ClientMetadata) (*dto.CreateScheduleResponse, error) {
	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		return nil, NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", ErrInvalidPlatform)
	}
	if !req.ScheduledAt.After(utils.UTCNow()) {
		return nil, NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", ErrScheduleTimeInPast)
	}

	item, err := s.itemRepo.ByUUID(ctx, req.ContentItemUUID)
	if err != nil {
		return nil, NewBusinessError("CONTENT_LOOKUP_FAILED", "Failed to lookup content item", err)
	}
	if item == nil || item.OrganizationID != req.OrganizationID {
		return nil, NewBusinessError("CONTENT_NOT_FOUND", "Content item not found", ErrContentItemNotFound)
	}
	if item.Status != models.ContentItemStatusApproved && item.Status != models.ContentItemStatusPublished {
		return nil, NewBusinessError("CONTENT_NOT_APPROVED", "Content item is not approved", ErrNotApproved)
	}

	current, err := s.versionRepo.CurrentByItem(ctx, item.ID)
	if err != nil {
		return nil, NewBusinessError("VERSION_LOOKUP_FAILED", "Failed to lookup current version", err)
	}
	if current == nil {
		return nil, NewBusinessError("NO_CURRENT_VERSION", "Content item has no current version", ErrContentVersionMissing)
	}

	adapted, err := adaptation.Adapt(current.Body, platform, req.MediaURLs)
	if err != nil {
		return nil, NewBusinessError("ADAPTATION_FAILED", "Adaptation failed", err)
	}
	adaptedRaw, err := json.Marshal(adapted)
	if err != nil {
		return nil, NewBusinessError("ADAPTATION_FAILED", "Adaptation failed", err)
	}

	schedule := &models.Schedule{
		UUID:             uuid.New(),
		OrganizationID:   req.OrganizationID,
		ContentItemID:    item.ID,
		ContentVersionID: current.ID,
		Platform:         platform,
		ScheduledAt:      req.ScheduledAt.UTC(),
		Status:           models.ScheduleStatusPending,
		MediaURLs:        pq.StringArray(adapted.MediaURLs),
		AdaptedContent:   adaptedRaw,
		CreatedAt:        utils.UTCNow(),
	}

	if err := s.scheduleRepo.Save(ctx, schedule); err != nil {
		return nil, NewBusinessError("SCHEDULE_CREATION_FAILED", "Schedule creation failed", err)
	}

	return &dto.CreateScheduleResponse{
		Message:     "Schedule created successfully",
		UUID:        schedule.UUID.String(),
		Status:      string(schedule.Status),
		Version:     current.Version,
		ScheduledAt: schedule.ScheduledAt.Format(time.RFC3339),
	}, nil
}

// CancelSchedule cancels a pending/due schedule. The conditional update means
// a cancel racing a worker claim can never both win.
func (s *ScheduleFlowImpl) CancelSchedule(ctx context.Context, organizationID uint, req *dto.CancelScheduleRequest, metadata *ClientMetadata) (*dto.CancelScheduleResponse, error) {
	schedule, err := s.scheduleRepo.ByUUID(ctx, req.ScheduleUUID)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LOOKUP_FAILED", "Failed to lookup schedule", err)
	}
	if schedule == nil || schedule.OrganizationID != organizationID {
		return nil, NewBusinessError("SCHEDULE_NOT_FOUND", "Schedule not found", ErrScheduleNotFound)
	}

	canceled, err := s.scheduleRepo.Cancel(ctx, schedule.ID)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_CANCEL_FAILED", "Schedule cancellation failed", err)
	}
	if !canceled {
		return nil, NewBusinessError("SCHEDULE_NOT_CANCELLABLE", "Schedule cannot be canceled in its current state", ErrScheduleNotCancellable)
	}

	return &dto.CancelScheduleResponse{
		Message: "Schedule canceled successfully",
		Status:  string(models.ScheduleStatusCanceled),
	}, nil
}

// ListSchedules returns the organization's schedules with optional filters
func (s *ScheduleFlowImpl) ListSchedules(ctx context.Context, req *dto.ListSchedulesRequest) (*dto.ListSchedulesResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid pagination", err)
	}

	filter := models.ScheduleFilter{OrganizationID: &req.OrganizationID}
	if req.Platform != nil {
		platform := models.Platform(*req.Platform)
		if !platform.Valid() {
			return nil, NewBusinessError("LIST_VALIDATION_FAILED", "Invalid platform filter", ErrInvalidPlatform)
		}
		filter.Platform = &platform
	}
	if req.Status != nil {
		status := models.ScheduleStatus(*req.Status)
		filter.Status = &status
	}

	schedules, err := s.scheduleRepo.ByFilter(ctx, filter, "scheduled_at ASC, id ASC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LIST_FAILED", "Failed to list schedules", err)
	}

	total, err := s.scheduleRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LIST_FAILED", "Failed to count schedules", err)
	}

	resp := &dto.ListSchedulesResponse{Total: total}
	for _, sched := range schedules {
		resp.Schedules = append(resp.Schedules, s.toScheduleDTO(ctx, sched))
	}
	return resp, nil
}

// ListDueSchedules returns the organization's currently due work, claim order
func (s *ScheduleFlowImpl) ListDueSchedules(ctx context.Context, organizationID uint, limit int) (*dto.ListSchedulesResponse, error) {
	due, err := s.scheduleRepo.ListDue(ctx, utils.UTCNow(), limit)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_LIST_FAILED", "Failed to list due schedules", err)
	}

	resp := &dto.ListSchedulesResponse{}
	for _, sched := range due {
		if sched.OrganizationID != organizationID {
			continue
		}
		resp.Schedules = append(resp.Schedules, s.toScheduleDTO(ctx, sched))
		resp.Total++
	}
	return resp, nil
}

func (s *ScheduleFlowImpl) toScheduleDTO(ctx context.Context, sched *models.Schedule) dto.ScheduleDTO {
	d := dto.ScheduleDTO{
		UUID:        sched.UUID.String(),
		Platform:    sched.Platform.String(),
		Status:      string(sched.Status),
		ScheduledAt: sched.ScheduledAt,
		PublishedAt: sched.PublishedAt,
		Attempts:    sched.Attempts,
		LastError:   sched.LastError,
		CreatedAt:   sched.CreatedAt,
	}
	if item, err := s.itemRepo.ByID(ctx, sched.ContentItemID); err == nil && item != nil {
		d.ContentItemUUID = item.UUID.String()
	}
	return d
}
