package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"furniture-order-service/internal/domain"
)

type cartRepo struct{ s *Store }

func (r *cartRepo) Upsert(_ context.Context, entry *domain.CartEntry) error {
	return r.s.with(func(st *state) error {
		k := cartKey{entry.UserID, entry.ProductID}
		now := time.Now()
		if existing, ok := st.carts[k]; ok {
			existing.Quantity = entry.Quantity
			existing.UpdatedAt = now
			st.carts[k] = existing
			*entry = existing
			return nil
		}
		st.cartSeq++
		entry.ID = st.cartSeq
		entry.CreatedAt, entry.UpdatedAt = now, now
		st.carts[k] = *entry
		return nil
	})
}

func (r *cartRepo) Delete(_ context.Context, userID string, productID uint64) error {
	return r.s.with(func(st *state) error {
		delete(st.carts, cartKey{userID, productID})
		return nil
	})
}

func (r *cartRepo) DeleteProducts(_ context.Context, userID string, productIDs []uint64) error {
	return r.s.with(func(st *state) error {
		for _, id := range productIDs {
			delete(st.carts, cartKey{userID, id})
		}
		return nil
	})
}

func (r *cartRepo) Clear(_ context.Context, userID string) error {
	return r.s.with(func(st *state) error {
		for k := range st.carts {
			if k.userID == userID {
				delete(st.carts, k)
			}
		}
		return nil
	})
}

func (r *cartRepo) ListByUser(_ context.Context, userID string) ([]domain.CartEntry, error) {
	var out []domain.CartEntry
	err := r.s.with(func(st *state) error {
		for k, v := range st.carts {
			if k.userID == userID {
				out = append(out, v)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// ListByUserForUpdate needs no lock here: transactions already run one at a time.
func (r *cartRepo) ListByUserForUpdate(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	return r.ListByUser(ctx, userID)
}

type productRepo struct{ s *Store }

func (r *productRepo) FindByIDs(_ context.Context, ids []uint64) ([]domain.Product, error) {
	var out []domain.Product
	err := r.s.with(func(st *state) error {
		for _, id := range dedupe(ids) {
			if p, ok := st.products[id]; ok && p.Lifecycle == domain.LifecycleActive {
				out = append(out, cloneProduct(p))
			}
		}
		return nil
	})
	return out, err
}

// LockByIDs is FindByIDs: inside a transaction the whole store is already exclusive.
func (r *productRepo) LockByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	return r.FindByIDs(ctx, ids)
}

func (r *productRepo) AdjustStock(_ context.Context, productID uint64, delta int64) error {
	return r.s.with(func(st *state) error {
		p, ok := st.products[productID]
		if !ok || p.StockQuantity == nil {
			return nil
		}
		next := *p.StockQuantity + delta
		if next < 0 {
			return &domain.InsufficientStockError{ProductID: productID, Requested: -delta, Available: *p.StockQuantity}
		}
		p.StockQuantity = &next
		st.products[productID] = p
		return nil
	})
}

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	return r.s.with(func(st *state) error {
		if order.TransactionRef != nil {
			if _, taken := st.refs[*order.TransactionRef]; taken {
				return fmt.Errorf("duplicate transaction ref %q", *order.TransactionRef)
			}
		}
		for _, o := range st.orders {
			if o.Reference == order.Reference {
				return fmt.Errorf("duplicate order reference %q", order.Reference)
			}
		}
		st.orderSeq++
		order.ID = st.orderSeq
		now := time.Now()
		order.CreatedAt, order.UpdatedAt = now, now
		if order.Lifecycle == "" {
			order.Lifecycle = domain.LifecycleActive
		}
		for i := range order.Items {
			st.itemSeq++
			order.Items[i].ID = st.itemSeq
			order.Items[i].OrderID = order.ID
			order.Items[i].CreatedAt = now
			if order.Items[i].Lifecycle == "" {
				order.Items[i].Lifecycle = domain.LifecycleActive
			}
		}
		st.orders[order.ID] = cloneOrder(*order)
		if order.TransactionRef != nil {
			st.refs[*order.TransactionRef] = order.ID
		}
		return nil
	})
}

func (r *orderRepo) FindByID(_ context.Context, id uint64) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.with(func(st *state) error {
		out = activeOrder(st, id)
		return nil
	})
	return out, err
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, id uint64) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *orderRepo) FindByTransactionRef(_ context.Context, ref string) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.with(func(st *state) error {
		if id, ok := st.refs[ref]; ok {
			out = activeOrder(st, id)
		}
		return nil
	})
	return out, err
}

func (r *orderRepo) FindByTransactionRefForUpdate(ctx context.Context, ref string) (*domain.Order, error) {
	return r.FindByTransactionRef(ctx, ref)
}

func (r *orderRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return r.list(func(o domain.Order) bool { return o.UserID == userID })
}

func (r *orderRepo) ListAll(_ context.Context) ([]domain.Order, error) {
	return r.list(func(domain.Order) bool { return true })
}

func (r *orderRepo) list(keep func(domain.Order) bool) ([]domain.Order, error) {
	var out []domain.Order
	err := r.s.with(func(st *state) error {
		for id, o := range st.orders {
			if o.Lifecycle == domain.LifecycleActive && keep(o) {
				out = append(out, *activeOrder(st, id))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r *orderRepo) UpdateState(_ context.Context, order *domain.Order) error {
	return r.s.with(func(st *state) error {
		cur, ok := st.orders[order.ID]
		if !ok || cur.Lifecycle != domain.LifecycleActive {
			return domain.ErrOrderNotFound
		}
		if order.TransactionRef != nil {
			if owner, taken := st.refs[*order.TransactionRef]; taken && owner != order.ID {
				return fmt.Errorf("duplicate transaction ref %q", *order.TransactionRef)
			}
			st.refs[*order.TransactionRef] = order.ID
		}
		cur.Status = order.Status
		cur.PaymentStatus = order.PaymentStatus
		cur.TransactionRef = clonePtr(order.TransactionRef)
		cur.PaymentID = clonePtr(order.PaymentID)
		cur.CheckoutURL = order.CheckoutURL
		cur.StockRestored = order.StockRestored
		cur.ConvertedOrderID = clonePtr(order.ConvertedOrderID)
		cur.UpdatedAt = time.Now()
		st.orders[order.ID] = cur
		return nil
	})
}

func (r *orderRepo) SoftDelete(_ context.Context, id uint64, at time.Time) error {
	return r.s.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok || o.Lifecycle != domain.LifecycleActive {
			return domain.ErrOrderNotFound
		}
		o.Lifecycle = domain.LifecycleSoftDeleted
		o.DeletedAt = &at
		for i := range o.Items {
			o.Items[i].Lifecycle = domain.LifecycleSoftDeleted
		}
		st.orders[id] = o
		if inv, ok := st.invoices[id]; ok {
			inv.Lifecycle = domain.LifecycleSoftDeleted
			st.invoices[id] = inv
		}
		return nil
	})
}

func activeOrder(st *state, id uint64) *domain.Order {
	o, ok := st.orders[id]
	if !ok || o.Lifecycle != domain.LifecycleActive {
		return nil
	}
	c := cloneOrder(o)
	items := c.Items[:0:0]
	for _, it := range c.Items {
		if it.Lifecycle == domain.LifecycleActive {
			items = append(items, it)
		}
	}
	c.Items = items
	return &c
}

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) Create(_ context.Context, invoice *domain.Invoice) error {
	return r.s.with(func(st *state) error {
		if _, exists := st.invoices[invoice.OrderID]; exists {
			return errors.New("invoice already exists for order")
		}
		st.invoiceSeq++
		invoice.ID = st.invoiceSeq
		if invoice.Lifecycle == "" {
			invoice.Lifecycle = domain.LifecycleActive
		}
		st.invoices[invoice.OrderID] = *invoice
		return nil
	})
}

func (r *invoiceRepo) FindByOrderID(_ context.Context, orderID uint64) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.s.with(func(st *state) error {
		if inv, ok := st.invoices[orderID]; ok && inv.Lifecycle == domain.LifecycleActive {
			out = &inv
		}
		return nil
	})
	return out, err
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
