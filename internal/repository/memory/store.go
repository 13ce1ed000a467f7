package memory

import (
	"context"
	"sync"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/repository"
)

type cartKey struct {
	userID    string
	productID uint64
}

type state struct {
	products map[uint64]domain.Product
	carts    map[cartKey]domain.CartEntry
	orders   map[uint64]domain.Order
	invoices map[uint64]domain.Invoice // keyed by order id
	refs     map[string]uint64

	cartSeq, orderSeq, itemSeq, invoiceSeq uint64
}

func newState() *state {
	return &state{
		products: map[uint64]domain.Product{},
		carts:    map[cartKey]domain.CartEntry{},
		orders:   map[uint64]domain.Order{},
		invoices: map[uint64]domain.Invoice{},
		refs:     map[string]uint64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.refs {
		c.refs[k] = v
	}
	c.cartSeq, c.orderSeq, c.itemSeq, c.invoiceSeq = s.cartSeq, s.orderSeq, s.itemSeq, s.invoiceSeq
	return c
}

type db struct {
	mu sync.Mutex
	st *state
}

// Store keeps everything in process memory. Transactions are serialized on a
// single mutex and run against a copy that replaces the live state on commit,
// so a failed callback leaves no trace.
type Store struct {
	db *db
	tx *state
}

func NewStore() *Store {
	return &Store{db: &db{st: newState()}}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Carts() repository.CartRepository       { return &cartRepo{s: s} }
func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }
func (s *Store) Orders() repository.OrderRepository     { return &orderRepo{s: s} }
func (s *Store) Invoices() repository.InvoiceRepository { return &invoiceRepo{s: s} }

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	working := s.db.st.clone()
	if err := fn(&Store{db: s.db, tx: working}); err != nil {
		return err
	}
	s.db.st = working
	return nil
}

func (s *Store) with(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.st)
}

// PutProduct seeds or replaces a catalog row.
func (s *Store) PutProduct(p domain.Product) {
	if p.Lifecycle == "" {
		p.Lifecycle = domain.LifecycleActive
	}
	_ = s.with(func(st *state) error {
		st.products[p.ID] = cloneProduct(p)
		return nil
	})
}

// Product returns the stored catalog row regardless of lifecycle.
func (s *Store) Product(id uint64) (domain.Product, bool) {
	var (
		p  domain.Product
		ok bool
	)
	_ = s.with(func(st *state) error {
		p, ok = st.products[id]
		p = cloneProduct(p)
		return nil
	})
	return p, ok
}

// InvoiceCount counts invoices, including soft-deleted ones.
func (s *Store) InvoiceCount() int {
	n := 0
	_ = s.with(func(st *state) error {
		n = len(st.invoices)
		return nil
	})
	return n
}

func cloneProduct(p domain.Product) domain.Product {
	if p.StockQuantity != nil {
		q := *p.StockQuantity
		p.StockQuantity = &q
	}
	return p
}

func cloneOrder(o domain.Order) domain.Order {
	if o.Items != nil {
		o.Items = append([]domain.OrderLineItem(nil), o.Items...)
	}
	o.QuoteExpiryDate = clonePtr(o.QuoteExpiryDate)
	o.SourceQuoteID = clonePtr(o.SourceQuoteID)
	o.ConvertedOrderID = clonePtr(o.ConvertedOrderID)
	o.TransactionRef = clonePtr(o.TransactionRef)
	o.PaymentID = clonePtr(o.PaymentID)
	o.DeletedAt = clonePtr(o.DeletedAt)
	return o
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
