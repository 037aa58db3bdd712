package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ScheduleStatus represents the state of one intended publish action.
// Transitions: pending -> due -> publishing -> published | failed.
// Cancellation is allowed only while pending or due.
type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusDue        ScheduleStatus = "due"
	ScheduleStatusPublishing ScheduleStatus = "publishing"
	ScheduleStatusPublished  ScheduleStatus = "published"
	ScheduleStatusFailed     ScheduleStatus = "failed"
	ScheduleStatusCanceled   ScheduleStatus = "canceled"
)

// String returns the string representation of the status
func (s ScheduleStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusPending, ScheduleStatusDue, ScheduleStatusPublishing,
		ScheduleStatusPublished, ScheduleStatusFailed, ScheduleStatusCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions
func (s ScheduleStatus) Terminal() bool {
	switch s {
	case ScheduleStatusPublished, ScheduleStatusFailed, ScheduleStatusCanceled:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ScheduleStatus
func (s *ScheduleStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ScheduleStatus(v)
	case []byte:
		*s = ScheduleStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ScheduleStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ScheduleStatus
func (s ScheduleStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ScheduleStatus: %s", s)
	}
	return string(s), nil
}

// Schedule represents a (content item, platform, time) triple to be published.
// The content version is pinned at schedule-creation time so later edits to the
// item's current version cannot silently change what gets published.
type Schedule struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_schedules_uuid" json:"uuid"`
	OrganizationID   uint            `gorm:"not null;index:idx_schedules_organization_id" json:"organization_id"`
	ContentItemID    uint            `gorm:"not null;index:idx_schedules_content_item_id" json:"content_item_id"`
	ContentVersionID uint            `gorm:"not null" json:"content_version_id"`
	Platform         Platform        `gorm:"type:platform;not null" json:"platform"`
	ScheduledAt      time.Time       `gorm:"not null;index:idx_schedules_scheduled_at" json:"scheduled_at"`
	Status           ScheduleStatus  `gorm:"type:schedule_status;not null;default:'pending';index:idx_schedules_status" json:"status"`
	MediaURLs        pq.StringArray  `gorm:"type:text[]" json:"media_urls"`
	AdaptedContent   json.RawMessage `gorm:"type:jsonb" json:"adapted_content,omitempty"`
	ClaimedAt        *time.Time      `json:"claimed_at,omitempty"`
	PublishedAt      *time.Time      `json:"published_at,omitempty"`
	Attempts         int             `gorm:"not null;default:0" json:"attempts"`
	LastError        *string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt        time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`

	// Relations
	Organization   *Organization   `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	ContentItem    *ContentItem    `gorm:"foreignKey:ContentItemID;references:ID" json:"content_item,omitempty"`
	ContentVersion *ContentVersion `gorm:"foreignKey:ContentVersionID;references:ID" json:"content_version,omitempty"`
}

func (Schedule) TableName() string { return "schedules" }

// ScheduleFilter provides filter fields for repository queries
type ScheduleFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	OrganizationID  *uint
	ContentItemID   *uint
	Platform        *Platform
	Status          *ScheduleStatus
	ScheduledAfter  *time.Time
	ScheduledBefore *time.Time
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
