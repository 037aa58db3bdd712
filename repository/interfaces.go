// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/publora/publora/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// OrganizationRepository defines operations for organizations
type OrganizationRepository interface {
	Repository[models.Organization, models.OrganizationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Organization, error)
	Deactivate(ctx context.Context, id uint) error
}

// SocialAccountRepository defines operations for connected social accounts
type SocialAccountRepository interface {
	Repository[models.SocialAccount, models.SocialAccountFilter]
	ByUUID(ctx context.Context, uuid string) (*models.SocialAccount, error)
	ByOrgPlatformExternalID(ctx context.Context, orgID uint, platform models.Platform, externalID string) (*models.SocialAccount, error)
	ListByOrgAndPlatform(ctx context.Context, orgID uint, platform models.Platform) ([]*models.SocialAccount, error)
	UpdateStatus(ctx context.Context, id uint, status models.SocialAccountStatus) error
}

// TokenRepository defines operations for encrypted OAuth tokens
type TokenRepository interface {
	Repository[models.Token, models.TokenFilter]
	CurrentByAccount(ctx context.Context, socialAccountID uint) (*models.Token, error)
	// ReplaceCurrent supersedes the current token for the account and inserts
	// the new one as current, in a single transaction
	ReplaceCurrent(ctx context.Context, token *models.Token) error
}

// ContentItemRepository defines operations for content items
type ContentItemRepository interface {
	Repository[models.ContentItem, models.ContentItemFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ContentItem, error)
	ListByOrganization(ctx context.Context, orgID uint, limit, offset int) ([]*models.ContentItem, error)
	UpdateStatus(ctx context.Context, id uint, status models.ContentItemStatus) error
}

// ContentVersionRepository defines operations for immutable content versions
type ContentVersionRepository interface {
	Repository[models.ContentVersion, models.ContentVersionFilter]
	ByItemAndVersion(ctx context.Context, contentItemID uint, version int) (*models.ContentVersion, error)
	CurrentByItem(ctx context.Context, contentItemID uint) (*models.ContentVersion, error)
	LatestVersionNumber(ctx context.Context, contentItemID uint) (int, error)
	// SetCurrent moves the current pointer to the given version, clearing any
	// previous current version of the same item in one transaction
	SetCurrent(ctx context.Context, contentItemID uint, version int) error
}

// ApprovalRepository defines operations for approvals
type ApprovalRepository interface {
	Repository[models.Approval, models.ApprovalFilter]
	LatestByItem(ctx context.Context, contentItemID uint) (*models.Approval, error)
}

// AdaptationPreviewRepository defines operations for persisted adaptation previews
type AdaptationPreviewRepository interface {
	Repository[models.AdaptationPreview, models.AdaptationPreviewFilter]
	Upsert(ctx context.Context, preview *models.AdaptationPreview) error
	ListByItemAndVersion(ctx context.Context, contentItemID, contentVersionID uint) ([]*models.AdaptationPreview, error)
}

// ScheduleRepository defines operations for publish schedules
type ScheduleRepository interface {
	Repository[models.Schedule, models.ScheduleFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Schedule, error)
	// ListDue returns pending/due schedules with scheduled_at <= now, ordered by
	// scheduled_at ascending with id as the deterministic tie-break
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error)
	// Claim atomically transitions pending/due -> publishing. Exactly one caller
	// wins for a given schedule; the loser observes claimed=false
	Claim(ctx context.Context, id uint, now time.Time) (claimed bool, err error)
	// Cancel atomically transitions pending/due -> canceled. It loses against a
	// concurrent claim and vice versa, never both
	Cancel(ctx context.Context, id uint) (canceled bool, err error)
	// ReleaseStale requeues publishing rows whose claim is older than the lease
	ReleaseStale(ctx context.Context, olderThan time.Time) (released int64, err error)
	MarkPublished(ctx context.Context, id uint, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, lastError string) error
	IncrementAttempts(ctx context.Context, id uint) error
}

// PublishDLQRepository defines operations for the publish dead-letter queue
type PublishDLQRepository interface {
	Repository[models.PublishDLQ, models.PublishDLQFilter]
	ListChronological(ctx context.Context, limit, offset int) ([]*models.PublishDLQ, error)
}

// EngagementEventRepository defines operations for accepted webhook events
type EngagementEventRepository interface {
	Repository[models.EngagementEvent, models.EngagementEventFilter]
	ByIdempotencyKey(ctx context.Context, key string) (*models.EngagementEvent, error)
	ListByPlatform(ctx context.Context, platform models.Platform, limit, offset int) ([]*models.EngagementEvent, error)
}
