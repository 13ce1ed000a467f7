package services

import (
	"context"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/repository"
)

// StockLedger moves stock_quantity. Both operations must run inside the
// caller's transaction so they commit or roll back with the order rows.
type StockLedger struct{}

// ReserveAndDecrement checks every tracked line against the locked product
// rows before decrementing any of them.
func (StockLedger) ReserveAndDecrement(ctx context.Context, tx repository.Store, locked []domain.Product, items []domain.OrderLineItem) error {
	byID := make(map[uint64]domain.Product, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return &domain.ProductUnavailableError{ProductID: it.ProductID}
		}
		if p.TracksStock() && *p.StockQuantity < it.Quantity {
			return &domain.InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: *p.StockQuantity}
		}
	}

	for _, it := range items {
		if !byID[it.ProductID].TracksStock() {
			continue
		}
		if err := tx.Products().AdjustStock(ctx, it.ProductID, -it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Restore credits a cancelled order's lines back once. It reports whether
// anything was credited and marks the order so a second call is a no-op.
func (StockLedger) Restore(ctx context.Context, tx repository.Store, order *domain.Order) (bool, error) {
	if !order.NeedsStockRestore() {
		return false, nil
	}
	for _, it := range order.Items {
		if err := tx.Products().AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			return false, err
		}
	}
	order.StockRestored = true
	return true, nil
}
