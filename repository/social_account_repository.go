package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// SocialAccountRepositoryImpl implements SocialAccountRepository
type SocialAccountRepositoryImpl struct {
	*BaseRepository[models.SocialAccount, models.SocialAccountFilter]
}

func NewSocialAccountRepository(db *gorm.DB) SocialAccountRepository {
	return &SocialAccountRepositoryImpl{BaseRepository: NewBaseRepository[models.SocialAccount, models.SocialAccountFilter](db)}
}

func (r *SocialAccountRepositoryImpl) ByID(ctx context.Context, id uint) (*models.SocialAccount, error) {
	db := r.getDB(ctx)
	var row models.SocialAccount
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SocialAccountRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.SocialAccount, error) {
	id, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid social account uuid: %w", err)
	}
	filter := models.SocialAccountFilter{UUID: &id}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *SocialAccountRepositoryImpl) ByOrgPlatformExternalID(ctx context.Context, orgID uint, platform models.Platform, externalID string) (*models.SocialAccount, error) {
	filter := models.SocialAccountFilter{
		OrganizationID: &orgID,
		Platform:       &platform,
		ExternalID:     &externalID,
	}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *SocialAccountRepositoryImpl) ListByOrgAndPlatform(ctx context.Context, orgID uint, platform models.Platform) ([]*models.SocialAccount, error) {
	filter := models.SocialAccountFilter{OrganizationID: &orgID, Platform: &platform}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

func (r *SocialAccountRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.SocialAccountStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid social account status: %s", status)
	}
	db := r.getDB(ctx)
	return db.Model(&models.SocialAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *SocialAccountRepositoryImpl) applyFilter(db *gorm.DB, f models.SocialAccountFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OrganizationID != nil {
		db = db.Where("organization_id = ?", *f.OrganizationID)
	}
	if f.Platform != nil {
		db = db.Where("platform = ?", *f.Platform)
	}
	if f.ExternalID != nil {
		db = db.Where("external_id = ?", *f.ExternalID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SocialAccountRepositoryImpl) ByFilter(ctx context.Context, filter models.SocialAccountFilter, orderBy string, limit, offset int) ([]*models.SocialAccount, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SocialAccount{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SocialAccount
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SocialAccountRepositoryImpl) Count(ctx context.Context, filter models.SocialAccountFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SocialAccount{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SocialAccountRepositoryImpl) Exists(ctx context.Context, filter models.SocialAccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
