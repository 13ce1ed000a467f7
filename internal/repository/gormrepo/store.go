package gormrepo

import (
	"context"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Carts() repository.CartRepository       { return &cartRepo{db: s.db} }
func (s *Store) Products() repository.ProductRepository { return &productRepo{db: s.db} }
func (s *Store) Orders() repository.OrderRepository     { return &orderRepo{db: s.db} }
func (s *Store) Invoices() repository.InvoiceRepository { return &invoiceRepo{db: s.db} }

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Models lists every table this service migrates.
func Models() []any {
	return []any{
		&domain.Product{},
		&domain.CartEntry{},
		&domain.Order{},
		&domain.OrderLineItem{},
		&domain.Invoice{},
	}
}

func active(db *gorm.DB) *gorm.DB {
	return db.Where("lifecycle = ?", domain.LifecycleActive)
}

var forUpdate = clause.Locking{Strength: "UPDATE"}
