package models

import (
	"time"

	"github.com/lib/pq"
)

// Token holds the encrypted OAuth credentials for one social account.
// Ciphertext only; decryption happens at the point of use and is never logged.
// Invariant: at most one current token per social account. Superseded rows are
// retained with is_current=false for audit.
type Token struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	SocialAccountID uint           `gorm:"not null;index:idx_tokens_social_account_id" json:"social_account_id"`
	AccessTokenEnc  string         `gorm:"type:text;not null" json:"-"`
	RefreshTokenEnc *string        `gorm:"type:text" json:"-"`
	ExpiresAt       *time.Time     `gorm:"index:idx_tokens_expires_at" json:"expires_at,omitempty"`
	Scopes          pq.StringArray `gorm:"type:text[]" json:"scopes"`
	IsCurrent       bool           `gorm:"not null;default:true;index:idx_tokens_social_account_current,where:is_current"  json:"is_current"`
	CreatedAt       time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`

	// Relations
	SocialAccount *SocialAccount `gorm:"foreignKey:SocialAccountID;references:ID" json:"social_account,omitempty"`
}

func (Token) TableName() string { return "tokens" }

// IsExpiredAt reports whether the token is expired at the given instant.
// Tokens without an expiry never expire on their own.
func (t *Token) IsExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// TokenFilter provides filter fields for repository queries
type TokenFilter struct {
	ID              *uint
	SocialAccountID *uint
	IsCurrent       *bool
	ExpiresBefore   *time.Time
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
