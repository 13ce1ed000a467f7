package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/infra"
	"furniture-order-service/internal/infra/events"
	"furniture-order-service/internal/metrics"
	"furniture-order-service/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderHistoryCache holds per-user order lists for a short time.
type OrderHistoryCache interface {
	Get(ctx context.Context, userID string) ([]domain.Order, bool)
	Set(ctx context.Context, userID string, orders []domain.Order)
	Invalidate(ctx context.Context, userID string)
}

type CheckoutRequest struct {
	SelectedProductIDs    []uint64
	DeliveryAddress       string
	InstallationRequested bool
}

type OrderService struct {
	store     repository.Store
	pricer    *Pricer
	ledger    StockLedger
	publisher infra.EventPublisher
	history   OrderHistoryCache
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOrderService(store repository.Store, pricer *Pricer, pub infra.EventPublisher) *OrderService {
	if pub == nil {
		pub = events.Fanout(nil)
	}
	return &OrderService{
		store:     store,
		pricer:    pricer,
		publisher: pub,
		now:       time.Now,
	}
}

func (s *OrderService) SetHistoryCache(c OrderHistoryCache) {
	s.history = c
}

func (s *OrderService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// placement describes one order insert inside a checkout transaction.
type placement struct {
	userID       string
	lines        []domain.LineRequest
	address      string
	installation bool
	quoteExpiry  *time.Time
	sourceQuote  *uint64
}

// Checkout converts the selected cart entries into a pending order. Pricing,
// stock decrement, the order insert and the cart cleanup commit together.
func (s *OrderService) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*domain.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, &domain.ValidationError{Field: "deliveryAddress", Reason: "required"}
	}

	var order *domain.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		// Cart rows are locked before products so a concurrent checkout of the
		// same cart waits here and then sees the entries already converted.
		entries, err := tx.Carts().ListByUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		lines, ids, err := selectEntries(entries, req.SelectedProductIDs)
		if err != nil {
			return err
		}
		order, err = s.place(ctx, tx, placement{
			userID:       userID,
			lines:        lines,
			address:      address,
			installation: req.InstallationRequested,
		})
		if err != nil {
			return err
		}
		return tx.Carts().DeleteProducts(ctx, userID, ids)
	})
	if err != nil {
		s.metrics.Checkout("order", checkoutOutcome(err))
		log.Warn().Err(err).Str("user_id", userID).Msg("checkout rejected")
		return nil, asCheckoutError(err)
	}

	s.metrics.Checkout("order", "ok")
	log.Info().Uint64("order_id", order.ID).Str("user_id", userID).Str("total", order.Total.String()).Msg("order placed")
	s.invalidate(ctx, userID)
	s.publish(ctx, domain.EventOrderCreated, order, "")
	return order, nil
}

// place prices, reserves and inserts one order. Quotes read products without
// locks and reserve nothing.
func (s *OrderService) place(ctx context.Context, tx repository.Store, p placement) (*domain.Order, error) {
	lines, err := MergeLines(p.lines)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	isQuote := p.quoteExpiry != nil
	var products []domain.Product
	if isQuote {
		products, err = tx.Products().FindByIDs(ctx, ids)
	} else {
		products, err = tx.Products().LockByIDs(ctx, ids)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.pricer.Snapshot(products, lines, p.installation)
	if err != nil {
		return nil, err
	}
	if !isQuote {
		if err := s.ledger.ReserveAndDecrement(ctx, tx, products, items); err != nil {
			return nil, err
		}
	}

	totals := s.pricer.Totals(items)
	order := &domain.Order{
		Reference:       newOrderReference(s.now()),
		UserID:          p.userID,
		Status:          domain.StatusPending,
		PaymentStatus:   domain.PaymentPending,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		DeliveryFee:     totals.DeliveryFee,
		InstallationFee: totals.InstallationFee,
		Total:           totals.Total,
		DeliveryAddress: p.address,
		IsQuote:         isQuote,
		QuoteExpiryDate: p.quoteExpiry,
		SourceQuoteID:   p.sourceQuote,
		StockReserved:   !isQuote,
		Items:           items,
		Lifecycle:       domain.LifecycleActive,
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus applies an admin fulfillment transition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint64, status string) (*domain.Order, error) {
	to, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		order   *domain.Order
		from    domain.OrderStatus
		invoice *domain.Invoice
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err = tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		from = order.Status
		if err := order.TransitionTo(to); err != nil {
			return err
		}
		invoice, err = s.afterTransition(ctx, tx, order)
		if err != nil {
			return err
		}
		return tx.Orders().UpdateState(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(from), string(to))
	log.Info().Uint64("order_id", orderID).Str("from", string(from)).Str("to", string(to)).Msg("order status changed")
	s.invalidate(ctx, order.UserID)
	s.publish(ctx, domain.EventOrderStatusChanged, order, "")
	if invoice != nil {
		s.publish(ctx, domain.EventInvoiceCreated, order, invoice.Number)
	}
	return order, nil
}

// afterTransition runs the side effects of the state the order just entered.
func (s *OrderService) afterTransition(ctx context.Context, tx repository.Store, order *domain.Order) (*domain.Invoice, error) {
	switch order.Status {
	case domain.StatusConfirmed:
		return s.ensureInvoice(ctx, tx, order)
	case domain.StatusCancelled:
		restored, err := s.ledger.Restore(ctx, tx, order)
		if err != nil {
			return nil, err
		}
		if restored {
			s.metrics.StockRestored()
		}
	}
	return nil, nil
}

// ensureInvoice issues the order's invoice unless one already exists.
// It returns nil when nothing new was created.
func (s *OrderService) ensureInvoice(ctx context.Context, tx repository.Store, order *domain.Order) (*domain.Invoice, error) {
	existing, err := tx.Invoices().FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}
	now := s.now()
	inv := &domain.Invoice{
		OrderID:   order.ID,
		Number:    newInvoiceNumber(now),
		Amount:    order.Total,
		IssuedAt:  now,
		Lifecycle: domain.LifecycleActive,
	}
	if err := tx.Invoices().Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdatePaymentStatus is the manual payment override, used mainly for refunds.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, orderID uint64, status string) (*domain.Order, error) {
	to, err := domain.ParsePaymentStatus(status)
	if err != nil {
		return nil, err
	}

	var (
		order    *domain.Order
		invoice  *domain.Invoice
		advanced bool
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err = tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.IsQuote {
			return &domain.InvalidStateTransitionError{Machine: "payment", From: string(order.PaymentStatus), To: string(to)}
		}
		if err := order.ApplyPayment(to); err != nil {
			return err
		}
		if to == domain.PaymentPaid {
			invoice, advanced, err = s.confirmPaid(ctx, tx, order)
			if err != nil {
				return err
			}
		}
		return tx.Orders().UpdateState(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint64("order_id", orderID).Str("payment_status", string(to)).Msg("payment status overridden")
	s.afterPayment(ctx, order, advanced, invoice)
	return order, nil
}

// confirmPaid advances a still-pending order to confirmed once it is paid.
func (s *OrderService) confirmPaid(ctx context.Context, tx repository.Store, order *domain.Order) (*domain.Invoice, bool, error) {
	if order.Status != domain.StatusPending {
		return nil, false, nil
	}
	if err := order.TransitionTo(domain.StatusConfirmed); err != nil {
		return nil, false, err
	}
	inv, err := s.ensureInvoice(ctx, tx, order)
	if err != nil {
		return nil, false, err
	}
	return inv, true, nil
}

func (s *OrderService) afterPayment(ctx context.Context, order *domain.Order, advanced bool, invoice *domain.Invoice) {
	s.invalidate(ctx, order.UserID)
	s.publish(ctx, domain.EventOrderPayment, order, "")
	if advanced {
		s.metrics.Transition(string(domain.StatusPending), string(domain.StatusConfirmed))
		s.publish(ctx, domain.EventOrderStatusChanged, order, "")
	}
	if invoice != nil {
		s.publish(ctx, domain.EventInvoiceCreated, order, invoice.Number)
	}
}

// GetUserOrder hides other users' orders behind ErrOrderNotFound.
func (s *OrderService) GetUserOrder(ctx context.Context, userID string, orderID uint64) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uint64) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if s.history != nil {
		if orders, ok := s.history.Get(ctx, userID); ok {
			return orders, nil
		}
	}
	orders, err := s.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	if s.history != nil {
		s.history.Set(ctx, userID, orders)
	}
	return orders, nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.store.Orders().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Delete soft-deletes the order together with its line items and invoice.
func (s *OrderService) Delete(ctx context.Context, orderID uint64) error {
	var order *domain.Order
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		return tx.Orders().SoftDelete(ctx, orderID, s.now())
	})
	if err != nil {
		return err
	}

	log.Info().Uint64("order_id", orderID).Msg("order soft-deleted")
	s.invalidate(ctx, order.UserID)
	s.publish(ctx, domain.EventOrderDeleted, order, "")
	return nil
}

func (s *OrderService) invalidate(ctx context.Context, userID string) {
	if s.history != nil {
		s.history.Invalidate(ctx, userID)
	}
}

// publish runs after commit. A broker failure never undoes a committed change.
func (s *OrderService) publish(ctx context.Context, eventType string, order *domain.Order, invoiceNumber string) {
	evt := domain.NewOrderEvent(eventType, order, s.now())
	evt.InvoiceNumber = invoiceNumber
	if err := s.publisher.Publish(ctx, eventType, evt); err != nil {
		log.Error().Err(err).Str("event", eventType).Uint64("order_id", order.ID).Msg("failed to publish event")
	}
}

// asCheckoutError passes business errors through and wraps everything else.
func asCheckoutError(err error) error {
	if domain.IsDomainError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.CheckoutFailedError{Err: err}
}

func checkoutOutcome(err error) string {
	var (
		stock       *domain.InsufficientStockError
		unavailable *domain.ProductUnavailableError
		empty       *domain.EmptyOrderError
		validation  *domain.ValidationError
		expired     *domain.QuoteExpiredError
	)
	switch {
	case errors.As(err, &stock):
		return "insufficient_stock"
	case errors.As(err, &unavailable):
		return "unavailable"
	case errors.As(err, &empty):
		return "empty"
	case errors.As(err, &validation):
		return "invalid"
	case errors.As(err, &expired):
		return "expired"
	default:
		return "failed"
	}
}

func newOrderReference(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102150405"), uuid.NewString())
}

func newInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
}
