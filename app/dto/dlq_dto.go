package dto

import (
	"encoding/json"
	"time"
)

// DLQEntryDTO represents a dead-lettered publish attempt in responses
type DLQEntryDTO struct {
	ID           uint            `json:"id"`
	ScheduleUUID string          `json:"schedule_uuid"`
	Platform     string          `json:"platform"`
	Error        string          `json:"error"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListDLQRequest represents the request to list dead-lettered entries
type ListDLQRequest struct {
	Platform *string `json:"platform,omitempty" validate:"omitempty,oneof=instagram twitter facebook linkedin youtube tiktok"`
	Page     int     `json:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListDLQResponse represents the paginated DLQ list
type ListDLQResponse struct {
	Entries []DLQEntryDTO `json:"entries"`
	Total   int64         `json:"total"`
}

// ReplayDLQRequest represents the request to replay a dead-lettered entry.
// Replay creates a fresh schedule for the same pinned version and platform.
type ReplayDLQRequest struct {
	EntryID     uint       `json:"-"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// ReplayDLQResponse represents the response after a replay
type ReplayDLQResponse struct {
	Message      string `json:"message"`
	ScheduleUUID string `json:"schedule_uuid"`
	ScheduledAt  string `json:"scheduled_at"`
}
