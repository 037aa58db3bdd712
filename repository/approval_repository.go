package repository

import (
	"context"
	"errors"

	"github.com/publora/publora/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApprovalRepositoryImpl implements ApprovalRepository
type ApprovalRepositoryImpl struct {
	*BaseRepository[models.Approval, models.ApprovalFilter]
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &ApprovalRepositoryImpl{BaseRepository: NewBaseRepository[models.Approval, models.ApprovalFilter](db)}
}

func (r *ApprovalRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Approval, error) {
	db := r.getDB(ctx)
	var row models.Approval
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ApprovalRepositoryImpl) LatestByItem(ctx context.Context, contentItemID uint) (*models.Approval, error) {
	filter := models.ApprovalFilter{ContentItemID: &contentItemID}
	rows, err := r.ByFilter(ctx, filter, "created_at DESC, id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ApprovalRepositoryImpl) applyFilter(db *gorm.DB, f models.ApprovalFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ContentItemID != nil {
		db = db.Where("content_item_id = ?", *f.ContentItemID)
	}
	if f.ApprovedBy != nil {
		db = db.Where("approved_by = ?", *f.ApprovedBy)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ApprovalRepositoryImpl) ByFilter(ctx context.Context, filter models.ApprovalFilter, orderBy string, limit, offset int) ([]*models.Approval, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Approval{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Approval
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ApprovalRepositoryImpl) Count(ctx context.Context, filter models.ApprovalFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Approval{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ApprovalRepositoryImpl) Exists(ctx context.Context, filter models.ApprovalFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// AdaptationPreviewRepositoryImpl implements AdaptationPreviewRepository
type AdaptationPreviewRepositoryImpl struct {
	*BaseRepository[models.AdaptationPreview, models.AdaptationPreviewFilter]
}

func NewAdaptationPreviewRepository(db *gorm.DB) AdaptationPreviewRepository {
	return &AdaptationPreviewRepositoryImpl{BaseRepository: NewBaseRepository[models.AdaptationPreview, models.AdaptationPreviewFilter](db)}
}

func (r *AdaptationPreviewRepositoryImpl) ByID(ctx context.Context, id uint) (*models.AdaptationPreview, error) {
	db := r.getDB(ctx)
	var row models.AdaptationPreview
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Upsert replaces the stored preview for the (item, version, platform) triple.
// Re-approving the same version regenerates previews in place.
func (r *AdaptationPreviewRepositoryImpl) Upsert(ctx context.Context, preview *models.AdaptationPreview) error {
	db := r.getDB(ctx)
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "content_item_id"},
			{Name: "content_version_id"},
			{Name: "platform"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"preview"}),
	}).Create(preview).Error
}

func (r *AdaptationPreviewRepositoryImpl) ListByItemAndVersion(ctx context.Context, contentItemID, contentVersionID uint) ([]*models.AdaptationPreview, error) {
	filter := models.AdaptationPreviewFilter{ContentItemID: &contentItemID, ContentVersionID: &contentVersionID}
	return r.ByFilter(ctx, filter, "platform ASC", 0, 0)
}

func (r *AdaptationPreviewRepositoryImpl) applyFilter(db *gorm.DB, f models.AdaptationPreviewFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ContentItemID != nil {
		db = db.Where("content_item_id = ?", *f.ContentItemID)
	}
	if f.ContentVersionID != nil {
		db = db.Where("content_version_id = ?", *f.ContentVersionID)
	}
	if f.Platform != nil {
		db = db.Where("platform = ?", *f.Platform)
	}
	return db
}

func (r *AdaptationPreviewRepositoryImpl) ByFilter(ctx context.Context, filter models.AdaptationPreviewFilter, orderBy string, limit, offset int) ([]*models.AdaptationPreview, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AdaptationPreview{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AdaptationPreview
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AdaptationPreviewRepositoryImpl) Count(ctx context.Context, filter models.AdaptationPreviewFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AdaptationPreview{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AdaptationPreviewRepositoryImpl) Exists(ctx context.Context, filter models.AdaptationPreviewFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
