package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// ContentItemRepositoryImpl implements ContentItemRepository
type ContentItemRepositoryImpl struct {
	*BaseRepository[models.ContentItem, models.ContentItemFilter]
}

func NewContentItemRepository(db *gorm.DB) ContentItemRepository {
	return &ContentItemRepositoryImpl{BaseRepository: NewBaseRepository[models.ContentItem, models.ContentItemFilter](db)}
}

func (r *ContentItemRepositoryImpl) ByID(ctx context.Context, id uint) (*models.ContentItem, error) {
	db := r.getDB(ctx)
	var row models.ContentItem
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ContentItemRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.ContentItem, error) {
	id, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid content item uuid: %w", err)
	}
	filter := models.ContentItemFilter{UUID: &id}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ContentItemRepositoryImpl) ListByOrganization(ctx context.Context, orgID uint, limit, offset int) ([]*models.ContentItem, error) {
	filter := models.ContentItemFilter{OrganizationID: &orgID}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
}

func (r *ContentItemRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.ContentItemStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid content item status: %s", status)
	}
	db := r.getDB(ctx)
	return db.Model(&models.ContentItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *ContentItemRepositoryImpl) applyFilter(db *gorm.DB, f models.ContentItemFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OrganizationID != nil {
		db = db.Where("organization_id = ?", *f.OrganizationID)
	}
	if f.Type != nil {
		db = db.Where("type = ?", *f.Type)
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

func (r *ContentItemRepositoryImpl) ByFilter(ctx context.Context, filter models.ContentItemFilter, orderBy string, limit, offset int) ([]*models.ContentItem, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ContentItem{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ContentItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContentItemRepositoryImpl) Count(ctx context.Context, filter models.ContentItemFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ContentItem{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ContentItemRepositoryImpl) Exists(ctx context.Context, filter models.ContentItemFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
