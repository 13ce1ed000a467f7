package repository

import (
	"context"
	"time"

	"furniture-order-service/internal/domain"
)

// Store groups the repositories behind one transactional boundary.
// Repositories obtained from the tx passed to Transaction's callback
// participate in that transaction; row locks are held until it returns.
type Store interface {
	Carts() CartRepository
	Products() ProductRepository
	Orders() OrderRepository
	Invoices() InvoiceRepository
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type CartRepository interface {
	Upsert(ctx context.Context, entry *domain.CartEntry) error
	Delete(ctx context.Context, userID string, productID uint64) error
	DeleteProducts(ctx context.Context, userID string, productIDs []uint64) error
	Clear(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]domain.CartEntry, error)
	// ListByUserForUpdate locks the user's cart rows until the transaction ends.
	ListByUserForUpdate(ctx context.Context, userID string) ([]domain.CartEntry, error)
}

type ProductRepository interface {
	// FindByIDs returns the active products among ids. Missing ids are simply absent.
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
	// LockByIDs is FindByIDs with row locks taken in ascending id order.
	LockByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
	AdjustStock(ctx context.Context, productID uint64, delta int64) error
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error)
	FindByTransactionRef(ctx context.Context, ref string) (*domain.Order, error)
	FindByTransactionRefForUpdate(ctx context.Context, ref string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	// UpdateState persists the mutable columns only; money fields and items are never rewritten.
	UpdateState(ctx context.Context, order *domain.Order) error
	SoftDelete(ctx context.Context, id uint64, at time.Time) error
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	FindByOrderID(ctx context.Context, orderID uint64) (*domain.Invoice, error)
}
