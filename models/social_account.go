package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SocialAccountStatus represents the lifecycle of a connected account
type SocialAccountStatus string

const (
	SocialAccountStatusActive  SocialAccountStatus = "active"
	SocialAccountStatusRevoked SocialAccountStatus = "revoked"
)

// String returns the string representation of the status
func (s SocialAccountStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SocialAccountStatus) Valid() bool {
	switch s {
	case SocialAccountStatusActive, SocialAccountStatusRevoked:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SocialAccountStatus
func (s *SocialAccountStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SocialAccountStatus(v)
	case []byte:
		*s = SocialAccountStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SocialAccountStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SocialAccountStatus
func (s SocialAccountStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SocialAccountStatus: %s", s)
	}
	return string(s), nil
}

// SocialAccount represents one connected account on one platform.
// Created when an OAuth flow completes; unique per (organization, platform, external_id).
type SocialAccount struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uk_social_accounts_uuid" json:"uuid"`
	OrganizationID uint                `gorm:"not null;uniqueIndex:uk_social_accounts_org_platform_external;index:idx_social_accounts_organization_id" json:"organization_id"`
	Platform       Platform            `gorm:"type:platform;not null;uniqueIndex:uk_social_accounts_org_platform_external" json:"platform"`
	ExternalID     string              `gorm:"size:255;not null;uniqueIndex:uk_social_accounts_org_platform_external" json:"external_id"`
	DisplayName    string              `gorm:"size:255" json:"display_name"`
	Username       string              `gorm:"size:255" json:"username"`
	Status         SocialAccountStatus `gorm:"type:social_account_status;not null;default:'active';index:idx_social_accounts_status" json:"status"`
	CreatedAt      time.Time           `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      *time.Time          `json:"updated_at,omitempty"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID" json:"organization,omitempty"`
	Tokens       []Token       `gorm:"foreignKey:SocialAccountID" json:"tokens,omitempty"`
}

func (SocialAccount) TableName() string { return "social_accounts" }

// SocialAccountFilter provides filter fields for repository queries
type SocialAccountFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	OrganizationID *uint
	Platform       *Platform
	ExternalID     *string
	Status         *SocialAccountStatus
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
