package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentItemStatus is a coarse lifecycle tag for a content item.
// Scheduling readiness is tracked on versions and schedules, not recomputed from children.
type ContentItemStatus string

const (
	ContentItemStatusDraft           ContentItemStatus = "draft"
	ContentItemStatusPendingApproval ContentItemStatus = "pending-approval"
	ContentItemStatusApproved        ContentItemStatus = "approved"
	ContentItemStatusPublished       ContentItemStatus = "published"
	ContentItemStatusArchived        ContentItemStatus = "archived"
)

// String returns the string representation of the status
func (s ContentItemStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ContentItemStatus) Valid() bool {
	switch s {
	case ContentItemStatusDraft, ContentItemStatusPendingApproval,
		ContentItemStatusApproved, ContentItemStatusPublished,
		ContentItemStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ContentItemStatus
func (s *ContentItemStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ContentItemStatus(v)
	case []byte:
		*s = ContentItemStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ContentItemStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ContentItemStatus
func (s ContentItemStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ContentItemStatus: %s", s)
	}
	return string(s), nil
}

// ContentItem represents one piece of content owned by an organization
type ContentItem struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_content_items_uuid" json:"uuid"`
	OrganizationID uint              `gorm:"not null;index:idx_content_items_organization_id" json:"organization_id"`
	Type           string            `gorm:"size:50;not null;default:'post'" json:"type"`
	Title          string            `gorm:"size:500;not null" json:"title"`
	Status         ContentItemStatus `gorm:"type:content_item_status;not null;default:'draft';index:idx_content_items_status" json:"status"`
	CreatedAt      time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_content_items_created_at" json:"created_at"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization    `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	Versions     []ContentVersion `gorm:"foreignKey:ContentItemID" json:"versions,omitempty"`
}

func (ContentItem) TableName() string { return "content_items" }

// ContentItemFilter provides filter fields for repository queries
type ContentItemFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Type           *string
	Status         *ContentItemStatus
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
