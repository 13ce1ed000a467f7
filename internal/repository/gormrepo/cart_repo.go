package gormrepo

import (
	"context"

	"furniture-order-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cartRepo struct {
	db *gorm.DB
}

func (r *cartRepo) Upsert(ctx context.Context, entry *domain.CartEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(entry).Error
}

func (r *cartRepo) Delete(ctx context.Context, userID string, productID uint64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&domain.CartEntry{}).Error
}

func (r *cartRepo) DeleteProducts(ctx context.Context, userID string, productIDs []uint64) error {
	if len(productIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Delete(&domain.CartEntry{}).Error
}

func (r *cartRepo) Clear(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.CartEntry{}).Error
}

func (r *cartRepo) ListByUser(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	var out []domain.CartEntry
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cartRepo) ListByUserForUpdate(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	var out []domain.CartEntry
	err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
