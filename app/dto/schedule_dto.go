package dto

import "time"

// CreateScheduleRequest represents the request to schedule a publish action.
// The item's current version is pinned at creation time.
type CreateScheduleRequest struct {
	OrganizationID  uint      `json:"-"`
	ContentItemUUID string    `json:"content_item_uuid" validate:"required,uuid4"`
	Platform        string    `json:"platform" validate:"required,oneof=instagram twitter facebook linkedin youtube tiktok"`
	ScheduledAt     time.Time `json:"scheduled_at" validate:"required"`
	MediaURLs       []string  `json:"media_urls,omitempty" validate:"omitempty,dive,url"`
}

// CreateScheduleResponse represents the response after scheduling
type CreateScheduleResponse struct {
	Message     string `json:"message"`
	UUID        string `json:"uuid"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
	ScheduledAt string `json:"scheduled_at"`
}

// CancelScheduleRequest represents the request to cancel a schedule
type CancelScheduleRequest struct {
	ScheduleUUID string `json:"-"`
}

// CancelScheduleResponse represents the response after cancellation
type CancelScheduleResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ListSchedulesRequest represents the request to list schedules
type ListSchedulesRequest struct {
	OrganizationID uint    `json:"-"`
	Platform       *string `json:"platform,omitempty" validate:"omitempty,oneof=instagram twitter facebook linkedin youtube tiktok"`
	Status         *string `json:"status,omitempty" validate:"omitempty,oneof=pending due publishing published failed canceled"`
	Page           int     `json:"page" validate:"omitempty,min=1"`
	PageSize       int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ScheduleDTO represents a schedule in responses
type ScheduleDTO struct {
	UUID            string     `json:"uuid"`
	ContentItemUUID string     `json:"content_item_uuid"`
	Platform        string     `json:"platform"`
	Status          string     `json:"status"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	Attempts        int        `json:"attempts"`
	LastError       *string    `json:"last_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListSchedulesResponse represents the paginated schedule list
type ListSchedulesResponse struct {
	Schedules []ScheduleDTO `json:"schedules"`
	Total     int64         `json:"total"`
}
