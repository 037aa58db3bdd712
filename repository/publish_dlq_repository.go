package repository

import (
	"context"
	"errors"

	"github.com/publora/publora/models"
	"gorm.io/gorm"
)

// PublishDLQRepositoryImpl implements PublishDLQRepository
type PublishDLQRepositoryImpl struct {
	*BaseRepository[models.PublishDLQ, models.PublishDLQFilter]
}

func NewPublishDLQRepository(db *gorm.DB) PublishDLQRepository {
	return &PublishDLQRepositoryImpl{BaseRepository: NewBaseRepository[models.PublishDLQ, models.PublishDLQFilter](db)}
}

func (r *PublishDLQRepositoryImpl) ByID(ctx context.Context, id uint) (*models.PublishDLQ, error) {
	db := r.getDB(ctx)
	var row models.PublishDLQ
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *PublishDLQRepositoryImpl) ListChronological(ctx context.Context, limit, offset int) ([]*models.PublishDLQ, error) {
	return r.ByFilter(ctx, models.PublishDLQFilter{}, "created_at ASC, id ASC", limit, offset)
}

func (r *PublishDLQRepositoryImpl) applyFilter(db *gorm.DB, f models.PublishDLQFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ScheduleID != nil {
		db = db.Where("schedule_id = ?", *f.ScheduleID)
	}
	if f.Platform != nil {
		db = db.Where("platform = ?", *f.Platform)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *PublishDLQRepositoryImpl) ByFilter(ctx context.Context, filter models.PublishDLQFilter, orderBy string, limit, offset int) ([]*models.PublishDLQ, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PublishDLQ{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PublishDLQ
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PublishDLQRepositoryImpl) Count(ctx context.Context, filter models.PublishDLQFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.PublishDLQ{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PublishDLQRepositoryImpl) Exists(ctx context.Context, filter models.PublishDLQFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
