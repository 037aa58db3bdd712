package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant boundary; it owns all other entities transitively.
// Organizations are never hard-deleted, only deactivated.
type Organization struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_organizations_uuid" json:"uuid"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	IsActive      *bool      `gorm:"default:true;index:idx_organizations_is_active" json:"is_active"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_organizations_created_at" json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`

	// Relations
	SocialAccounts []SocialAccount `gorm:"foreignKey:OrganizationID" json:"social_accounts,omitempty"`
	ContentItems   []ContentItem   `gorm:"foreignKey:OrganizationID" json:"content_items,omitempty"`
}

func (Organization) TableName() string { return "organizations" }

// OrganizationFilter provides filter fields for repository queries
type OrganizationFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Name          *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
