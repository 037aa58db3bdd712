package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Approval records an operator approving a content item's current version.
// Approval marks readiness and produces previews; it never creates schedules.
type Approval struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ContentItemID    uint           `gorm:"not null;index:idx_approvals_content_item_id" json:"content_item_id"`
	ContentVersionID uint           `gorm:"not null" json:"content_version_id"`
	ApprovedBy       string         `gorm:"size:255;not null" json:"approved_by"`
	Notes            *string        `gorm:"type:text" json:"notes,omitempty"`
	Platforms        pq.StringArray `gorm:"type:text[]" json:"platforms"`
	CreatedAt        time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	ContentItem    *ContentItem    `gorm:"foreignKey:ContentItemID;references:ID" json:"content_item,omitempty"`
	ContentVersion *ContentVersion `gorm:"foreignKey:ContentVersionID;references:ID" json:"content_version,omitempty"`
}

func (Approval) TableName() string { return "approvals" }

// ApprovalFilter provides filter fields for repository queries
type ApprovalFilter struct {
	ID            *uint
	ContentItemID *uint
	ApprovedBy    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// AdaptationPreview persists the adapted content generated during approval
// for one (content item, version, platform) so operators can review it
type AdaptationPreview struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ContentItemID    uint            `gorm:"not null;uniqueIndex:uk_adaptation_previews_item_version_platform;index:idx_adaptation_previews_content_item_id" json:"content_item_id"`
	ContentVersionID uint            `gorm:"not null;uniqueIndex:uk_adaptation_previews_item_version_platform" json:"content_version_id"`
	Platform         Platform        `gorm:"type:platform;not null;uniqueIndex:uk_adaptation_previews_item_version_platform" json:"platform"`
	Preview          json.RawMessage `gorm:"type:jsonb;not null" json:"preview"`
	CreatedAt        time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (AdaptationPreview) TableName() string { return "adaptation_previews" }

// AdaptationPreviewFilter provides filter fields for repository queries
type AdaptationPreviewFilter struct {
	ID               *uint
	ContentItemID    *uint
	ContentVersionID *uint
	Platform         *Platform
}
