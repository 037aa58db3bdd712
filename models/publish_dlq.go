package models

import (
	"encoding/json"
	"time"
)

// PublishDLQ records a publish attempt whose retries were exhausted.
// Rows are append-only; they are read for operator triage and manual replay,
// never auto-retried.
type PublishDLQ struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ScheduleID uint            `gorm:"not null;index:idx_publish_dlq_schedule_id" json:"schedule_id"`
	Platform   Platform        `gorm:"type:platform;not null" json:"platform"`
	Error      string          `gorm:"type:text;not null" json:"error"`
	Payload    json.RawMessage `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt  time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_publish_dlq_created_at" json:"created_at"`

	// Relations
	Schedule *Schedule `gorm:"foreignKey:ScheduleID;references:ID" json:"schedule,omitempty"`
}

func (PublishDLQ) TableName() string { return "publish_dlq" }

// PublishDLQFilter provides filter fields for repository queries
type PublishDLQFilter struct {
	ID            *uint
	ScheduleID    *uint
	Platform      *Platform
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
