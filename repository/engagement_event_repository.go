package repository

import (
	"context"
	"errors"

	"github.com/publora/publora/models"
	"gorm.io/gorm"
)

// EngagementEventRepositoryImpl implements EngagementEventRepository
type EngagementEventRepositoryImpl struct {
	*BaseRepository[models.EngagementEvent, models.EngagementEventFilter]
}

func NewEngagementEventRepository(db *gorm.DB) EngagementEventRepository {
	return &EngagementEventRepositoryImpl{BaseRepository: NewBaseRepository[models.EngagementEvent, models.EngagementEventFilter](db)}
}

func (r *EngagementEventRepositoryImpl) ByID(ctx context.Context, id uint) (*models.EngagementEvent, error) {
	db := r.getDB(ctx)
	var row models.EngagementEvent
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *EngagementEventRepositoryImpl) ByIdempotencyKey(ctx context.Context, key string) (*models.EngagementEvent, error) {
	filter := models.EngagementEventFilter{IdempotencyKey: &key}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *EngagementEventRepositoryImpl) ListByPlatform(ctx context.Context, platform models.Platform, limit, offset int) ([]*models.EngagementEvent, error) {
	filter := models.EngagementEventFilter{Platform: &platform}
	return r.ByFilter(ctx, filter, "received_at DESC, id DESC", limit, offset)
}

func (r *EngagementEventRepositoryImpl) applyFilter(db *gorm.DB, f models.EngagementEventFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.Platform != nil {
		db = db.Where("platform = ?", *f.Platform)
	}
	if f.IdempotencyKey != nil {
		db = db.Where("idempotency_key = ?", *f.IdempotencyKey)
	}
	if f.EventType != nil {
		db = db.Where("event_type = ?", *f.EventType)
	}
	if f.ReceivedAfter != nil {
		db = db.Where("received_at >= ?", *f.ReceivedAfter)
	}
	if f.ReceivedBefore != nil {
		db = db.Where("received_at < ?", *f.ReceivedBefore)
	}
	return db
}

func (r *EngagementEventRepositoryImpl) ByFilter(ctx context.Context, filter models.EngagementEventFilter, orderBy string, limit, offset int) ([]*models.EngagementEvent, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EngagementEvent{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.EngagementEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *EngagementEventRepositoryImpl) Count(ctx context.Context, filter models.EngagementEventFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.EngagementEvent{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EngagementEventRepositoryImpl) Exists(ctx context.Context, filter models.EngagementEventFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
