package models

import (
	"encoding/json"
	"time"
)

// ContentVersion is an immutable snapshot of a content item's body.
// Version numbers are monotonically increasing, gapless integers per item;
// exactly one version is current per item at any time.
type ContentVersion struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ContentItemID uint            `gorm:"not null;uniqueIndex:uk_content_versions_item_version;index:idx_content_versions_content_item_id" json:"content_item_id"`
	Version       int             `gorm:"not null;uniqueIndex:uk_content_versions_item_version" json:"version"`
	Body          string          `gorm:"type:text;not null" json:"body"`
	Metadata      json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	IsCurrent     bool            `gorm:"not null;default:false;index:idx_content_versions_item_current,where:is_current" json:"is_current"`
	CreatedBy     string          `gorm:"size:255" json:"created_by"`
	CreatedAt     time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	ContentItem *ContentItem `gorm:"foreignKey:ContentItemID;references:ID" json:"content_item,omitempty"`
}

func (ContentVersion) TableName() string { return "content_versions" }

// ContentVersionFilter provides filter fields for repository queries
type ContentVersionFilter struct {
	ID            *uint
	ContentItemID *uint
	Version       *int
	IsCurrent     *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
