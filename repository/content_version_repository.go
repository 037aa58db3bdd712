package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/publora/publora/models"
	"gorm.io/gorm"
)

// ContentVersionRepositoryImpl implements ContentVersionRepository
type ContentVersionRepositoryImpl struct {
	*BaseRepository[models.ContentVersion, models.ContentVersionFilter]
}

func NewContentVersionRepository(db *gorm.DB) ContentVersionRepository {
	return &ContentVersionRepositoryImpl{BaseRepository: NewBaseRepository[models.ContentVersion, models.ContentVersionFilter](db)}
}

func (r *ContentVersionRepositoryImpl) ByID(ctx context.Context, id uint) (*models.ContentVersion, error) {
	db := r.getDB(ctx)
	var row models.ContentVersion
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ContentVersionRepositoryImpl) ByItemAndVersion(ctx context.Context, contentItemID uint, version int) (*models.ContentVersion, error) {
	filter := models.ContentVersionFilter{ContentItemID: &contentItemID, Version: &version}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ContentVersionRepositoryImpl) CurrentByItem(ctx context.Context, contentItemID uint) (*models.ContentVersion, error) {
	isCurrent := true
	filter := models.ContentVersionFilter{ContentItemID: &contentItemID, IsCurrent: &isCurrent}
	rows, err := r.ByFilter(ctx, filter, "version DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ContentVersionRepositoryImpl) LatestVersionNumber(ctx context.Context, contentItemID uint) (int, error) {
	db := r.getDB(ctx)
	var max *int
	err := db.Model(&models.ContentVersion{}).
		Where("content_item_id = ?", contentItemID).
		Select("MAX(version)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// SetCurrent moves the current pointer: clears the previous current version of
// the item, then marks the requested one. Errors if the version does not exist.
func (r *ContentVersionRepositoryImpl) SetCurrent(ctx context.Context, contentItemID uint, version int) error {
	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)
		if err := db.Model(&models.ContentVersion{}).
			Where("content_item_id = ? AND is_current = ?", contentItemID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		res := db.Model(&models.ContentVersion{}).
			Where("content_item_id = ? AND version = ?", contentItemID, version).
			Update("is_current", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("version %d not found for content item %d", version, contentItemID)
		}
		return nil
	})
}

func (r *ContentVersionRepositoryImpl) applyFilter(db *gorm.DB, f models.ContentVersionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ContentItemID != nil {
		db = db.Where("content_item_id = ?", *f.ContentItemID)
	}
	if f.Version != nil {
		db = db.Where("version = ?", *f.Version)
	}
	if f.IsCurrent != nil {
		db = db.Where("is_current = ?", *f.IsCurrent)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ContentVersionRepositoryImpl) ByFilter(ctx context.Context, filter models.ContentVersionFilter, orderBy string, limit, offset int) ([]*models.ContentVersion, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ContentVersion{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ContentVersion
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContentVersionRepositoryImpl) Count(ctx context.Context, filter models.ContentVersionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ContentVersion{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ContentVersionRepositoryImpl) Exists(ctx context.Context, filter models.ContentVersionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
