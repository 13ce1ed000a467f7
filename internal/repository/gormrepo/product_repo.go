package gormrepo

import (
	"context"
	"errors"

	"furniture-order-service/internal/domain"

	"gorm.io/gorm"
)

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Product
	if err := r.db.WithContext(ctx).Scopes(active).Where("id IN ?", ids).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) LockByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Product
	err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		Scopes(active).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdjustStock moves a tracked stock counter. A decrement that would go
// negative affects no rows and is reported as InsufficientStockError.
// Untracked or missing products are left alone.
func (r *productRepo) AdjustStock(ctx context.Context, productID uint64, delta int64) error {
	q := r.db.WithContext(ctx).Model(&domain.Product{}).
		Where("id = ? AND stock_quantity IS NOT NULL", productID)
	if delta < 0 {
		q = q.Where("stock_quantity >= ?", -delta)
	}
	res := q.UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if delta >= 0 || res.RowsAffected > 0 {
		return nil
	}
	var current domain.Product
	if err := r.db.WithContext(ctx).Select("id", "stock_quantity").First(&current, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if current.StockQuantity == nil {
		return nil
	}
	return &domain.InsufficientStockError{ProductID: productID, Requested: -delta, Available: *current.StockQuantity}
}
