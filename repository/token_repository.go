package repository

import (
	"context"
	"errors"

	"github.com/publora/publora/models"
	"github.com/publora/publora/utils"
	"gorm.io/gorm"
)

// TokenRepositoryImpl implements TokenRepository
type TokenRepositoryImpl struct {
	*BaseRepository[models.Token, models.TokenFilter]
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &TokenRepositoryImpl{BaseRepository: NewBaseRepository[models.Token, models.TokenFilter](db)}
}

func (r *TokenRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Token, error) {
	db := r.getDB(ctx)
	var row models.Token
	if err := db.Last(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *TokenRepositoryImpl) CurrentByAccount(ctx context.Context, socialAccountID uint) (*models.Token, error) {
	isCurrent := true
	filter := models.TokenFilter{SocialAccountID: &socialAccountID, IsCurrent: &isCurrent}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ReplaceCurrent demotes the existing current token for the account and inserts
// the new one as current in a single transaction. Old rows stay for audit.
func (r *TokenRepositoryImpl) ReplaceCurrent(ctx context.Context, token *models.Token) error {
	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		db := r.getDB(txCtx)
		if err := db.Model(&models.Token{}).
			Where("social_account_id = ? AND is_current = ?", token.SocialAccountID, true).
			Updates(map[string]any{
				"is_current": false,
				"updated_at": utils.UTCNow(),
			}).Error; err != nil {
			return err
		}
		token.IsCurrent = true
		return db.Create(token).Error
	})
}

func (r *TokenRepositoryImpl) applyFilter(db *gorm.DB, f models.TokenFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.SocialAccountID != nil {
		db = db.Where("social_account_id = ?", *f.SocialAccountID)
	}
	if f.IsCurrent != nil {
		db = db.Where("is_current = ?", *f.IsCurrent)
	}
	if f.ExpiresBefore != nil {
		db = db.Where("expires_at < ?", *f.ExpiresBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *TokenRepositoryImpl) ByFilter(ctx context.Context, filter models.TokenFilter, orderBy string, limit, offset int) ([]*models.Token, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Token{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Token
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TokenRepositoryImpl) Count(ctx context.Context, filter models.TokenFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Token{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TokenRepositoryImpl) Exists(ctx context.Context, filter models.TokenFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
