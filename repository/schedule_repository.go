package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// ScheduleRepositoryImpl implements ScheduleRepository
type ScheduleRepositoryImpl struct {
	*BaseRepository[models.Schedule, models.ScheduleFilter]
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &ScheduleRepositoryImpl{BaseRepository: NewBaseRepository[models.Schedule, models.ScheduleFilter](db)}
}

func (r *ScheduleRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Schedule, error) {
	db := r.getDB(ctx)
	var row models.Schedule
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ScheduleRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Schedule, error) {
	id, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule uuid: %w", err)
	}
	filter := models.ScheduleFilter{UUID: &id}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListDue returns schedules ready to be claimed, oldest scheduled_at first with
// id as the deterministic tie-break.
func (r *ScheduleRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Schedule, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Schedule{}).
		Where("status IN ?", []models.ScheduleStatus{models.ScheduleStatusPending, models.ScheduleStatusDue}).
		Where("scheduled_at <= ?", now).
		Order("scheduled_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []*models.Schedule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Claim transitions pending/due -> publishing with a conditional UPDATE.
// The WHERE clause guarantees exactly one winner per schedule: a concurrent
// claimer or a cancel sees zero rows affected.
func (r *ScheduleRepositoryImpl) Claim(ctx context.Context, id uint, now time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Schedule{}).
		Where("id = ? AND status IN ?", id, []models.ScheduleStatus{models.ScheduleStatusPending, models.ScheduleStatusDue}).
		Updates(map[string]any{
			"status":     models.ScheduleStatusPublishing,
			"claimed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Cancel transitions pending/due -> canceled. A schedule already claimed for
// publishing (or terminal) cannot be canceled.
func (r *ScheduleRepositoryImpl) Cancel(ctx context.Context, id uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Schedule{}).
		Where("id = ? AND status IN ?", id, []models.ScheduleStatus{models.ScheduleStatusPending, models.ScheduleStatusDue}).
		Updates(map[string]any{
			"status":     models.ScheduleStatusCanceled,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStale requeues publishing rows whose claim predates the lease cutoff,
// so work lost to a crashed worker becomes claimable again.
func (r *ScheduleRepositoryImpl) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Schedule{}).
		Where("status = ? AND claimed_at < ?", models.ScheduleStatusPublishing, olderThan).
		Updates(map[string]any{
			"status":     models.ScheduleStatusDue,
			"claimed_at": nil,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *ScheduleRepositoryImpl) MarkPublished(ctx context.Context, id uint, publishedAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleStatusPublishing).
		Updates(map[string]any{
			"status":       models.ScheduleStatusPublished,
			"published_at": publishedAt,
			"last_error":   nil,
			"updated_at":   utils.UTCNow(),
		}).Error
}

func (r *ScheduleRepositoryImpl) MarkFailed(ctx context.Context, id uint, lastError string) error {
	db := r.getDB(ctx)
	return db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleStatusPublishing).
		Updates(map[string]any{
			"status":     models.ScheduleStatusFailed,
			"last_error": lastError,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *ScheduleRepositoryImpl) IncrementAttempts(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *ScheduleRepositoryImpl) applyFilter(db *gorm.DB, f models.ScheduleFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.OrganizationID != nil {
		db = db.Where("organization_id = ?", *f.OrganizationID)
	}
	if f.ContentItemID != nil {
		db = db.Where("content_item_id = ?", *f.ContentItemID)
	}
	if f.Platform != nil {
		db = db.Where("platform = ?", *f.Platform)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.ScheduledAfter != nil {
		db = db.Where("scheduled_at >= ?", *f.ScheduledAfter)
	}
	if f.ScheduledBefore != nil {
		db = db.Where("scheduled_at < ?", *f.ScheduledBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ScheduleRepositoryImpl) ByFilter(ctx context.Context, filter models.ScheduleFilter, orderBy string, limit, offset int) ([]*models.Schedule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Schedule{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Schedule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepositoryImpl) Count(ctx context.Context, filter models.ScheduleFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Schedule{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ScheduleRepositoryImpl) Exists(ctx context.Context, filter models.ScheduleFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
