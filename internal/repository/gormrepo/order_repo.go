package gormrepo

import (
	"context"
	"errors"
	"time"

	"furniture-order-service/internal/domain"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Create(order)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("reference", order.Reference).Msg("order insert failed")
		return result.Error
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	return r.findOne(ctx, false, "id = ?", id)
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error) {
	return r.findOne(ctx, true, "id = ?", id)
}

func (r *orderRepo) FindByTransactionRef(ctx context.Context, ref string) (*domain.Order, error) {
	return r.findOne(ctx, false, "transaction_ref = ?", ref)
}

func (r *orderRepo) FindByTransactionRefForUpdate(ctx context.Context, ref string) (*domain.Order, error) {
	return r.findOne(ctx, true, "transaction_ref = ?", ref)
}

// findOne loads the order row (optionally locked) and then its active items.
// Items are read in a second query so the lock clause applies to the order row only.
func (r *orderRepo) findOne(ctx context.Context, lock bool, query string, arg any) (*domain.Order, error) {
	q := r.db.WithContext(ctx).Scopes(active)
	if lock {
		q = q.Clauses(forUpdate)
	}
	var o domain.Order
	if err := q.Where(query, arg).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.db.WithContext(ctx).Scopes(active).
		Where("order_id = ?", o.ID).Order("id ASC").Find(&o.Items).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).Scopes(active).
		Preload("Items", active).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := r.db.WithContext(ctx).Scopes(active).Preload("Items", active).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *orderRepo) UpdateState(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Model(order).
		Select("status", "payment_status", "transaction_ref", "payment_id", "checkout_url",
			"stock_restored", "converted_order_id", "updated_at").
		Omit(clause.Associations).
		Updates(order).Error
}

// SoftDelete cascades to line items and the invoice. Callers run it inside a transaction.
func (r *orderRepo) SoftDelete(ctx context.Context, id uint64, at time.Time) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&domain.Order{}).Scopes(active).Where("id = ?", id).
		Updates(map[string]any{"lifecycle": domain.LifecycleSoftDeleted, "deleted_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	if err := db.Model(&domain.OrderLineItem{}).Where("order_id = ?", id).
		Update("lifecycle", domain.LifecycleSoftDeleted).Error; err != nil {
		return err
	}
	return db.Model(&domain.Invoice{}).Where("order_id = ?", id).
		Update("lifecycle", domain.LifecycleSoftDeleted).Error
}

type invoiceRepo struct {
	db *gorm.DB
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *invoiceRepo) FindByOrderID(ctx context.Context, orderID uint64) (*domain.Invoice, error) {
	var inv domain.Invoice
	if err := r.db.WithContext(ctx).Scopes(active).Where("order_id = ?", orderID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}
