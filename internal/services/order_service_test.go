package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/mocks"
	"furniture-order-service/internal/repository"
	"furniture-order-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*memory.Store
}

func (s failingStore) Orders() repository.OrderRepository {
	return failingOrders{s.Store.Orders()}
}

func (s failingStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(failingStore{tx.(*memory.Store)})
	})
}

type failingOrders struct {
	repository.OrderRepository
}

func (failingOrders) Create(context.Context, *domain.Order) error {
	return errors.New("Error 1213: Deadlock found when trying to get lock")
}

// lockTrail records which reads a transaction takes, in order.
type lockTrail struct {
	*memory.Store
	mu    *sync.Mutex
	calls *[]string
}

func (s lockTrail) record(call string) {
	s.mu.Lock()
	*s.calls = append(*s.calls, call)
	s.mu.Unlock()
}

func (s lockTrail) Carts() repository.CartRepository {
	return trailCarts{s.Store.Carts(), s}
}

func (s lockTrail) Products() repository.ProductRepository {
	return trailProducts{s.Store.Products(), s}
}

func (s lockTrail) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.Transaction(ctx, func(tx repository.Store) error {
		return fn(lockTrail{tx.(*memory.Store), s.mu, s.calls})
	})
}

type trailCarts struct {
	repository.CartRepository
	trail lockTrail
}

func (c trailCarts) ListByUser(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	c.trail.record("cart")
	return c.CartRepository.ListByUser(ctx, userID)
}

func (c trailCarts) ListByUserForUpdate(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	c.trail.record("cart for update")
	return c.CartRepository.ListByUserForUpdate(ctx, userID)
}

type trailProducts struct {
	repository.ProductRepository
	trail lockTrail
}

func (p trailProducts) LockByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	p.trail.record("products for update")
	return p.ProductRepository.LockByIDs(ctx, ids)
}

func TestOrderService_Checkout(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*fixture)
		request       CheckoutRequest
		expectedError any
		verify        func(*testing.T, *fixture, *domain.Order)
	}{
		{
			name: "two units at 100 with flat delivery 200",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", stock(5)))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 2)
			},
			request: CheckoutRequest{DeliveryAddress: TestAddress},
			verify: func(t *testing.T, f *fixture, o *domain.Order) {
				assertMoney(t, "200", o.Subtotal)
				assertMoney(t, "0", o.Tax)
				assertMoney(t, "200", o.DeliveryFee)
				assertMoney(t, "400", o.Total)
				assert.Equal(t, domain.StatusPending, o.Status)
				assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
				assert.True(t, o.StockReserved)
				assert.False(t, o.IsQuote)
				assert.NotEmpty(t, o.Reference)
				require.Len(t, o.Items, 1)
				assertMoney(t, "100", o.Items[0].UnitPrice)
				assert.Equal(t, int64(3), f.stockOf(t, 1))

				lines, _ := f.carts.List(context.Background(), TestUserID)
				assert.Empty(t, lines)
			},
		},
		{
			name: "out of stock leaves cart and stock untouched",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", stock(0)))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 1)
			},
			request:       CheckoutRequest{DeliveryAddress: TestAddress},
			expectedError: &domain.InsufficientStockError{},
			verify: func(t *testing.T, f *fixture, _ *domain.Order) {
				assert.Equal(t, int64(0), f.stockOf(t, 1))
				lines, _ := f.carts.List(context.Background(), TestUserID)
				assert.Len(t, lines, 1)
				orders, _ := f.orders.ListAll(context.Background())
				assert.Empty(t, orders)
			},
		},
		{
			name: "one short product rolls back every decrement",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", stock(5)), CreateMockProduct(2, "100", stock(1)))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 2)
				f.carts.AddOrUpdate(context.Background(), TestUserID, 2, 2)
			},
			request:       CheckoutRequest{DeliveryAddress: TestAddress},
			expectedError: &domain.InsufficientStockError{},
			verify: func(t *testing.T, f *fixture, _ *domain.Order) {
				assert.Equal(t, int64(5), f.stockOf(t, 1))
				assert.Equal(t, int64(1), f.stockOf(t, 2))
			},
		},
		{
			name: "subset checkout clears only converted entries",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", stock(5)), CreateMockProduct(2, "30", nil))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 1)
				f.carts.AddOrUpdate(context.Background(), TestUserID, 2, 3)
			},
			request: CheckoutRequest{DeliveryAddress: TestAddress, SelectedProductIDs: []uint64{2}},
			verify: func(t *testing.T, f *fixture, o *domain.Order) {
				require.Len(t, o.Items, 1)
				assert.Equal(t, uint64(2), o.Items[0].ProductID)
				assertMoney(t, "90", o.Subtotal)
				assert.Equal(t, int64(5), f.stockOf(t, 1))

				lines, _ := f.carts.List(context.Background(), TestUserID)
				require.Len(t, lines, 1)
				assert.Equal(t, uint64(1), lines[0].ProductID)
			},
		},
		{
			name:          "empty cart",
			request:       CheckoutRequest{DeliveryAddress: TestAddress},
			expectedError: &domain.EmptyOrderError{},
		},
		{
			name: "selected product not in cart",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", nil))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 1)
			},
			request:       CheckoutRequest{DeliveryAddress: TestAddress, SelectedProductIDs: []uint64{9}},
			expectedError: &domain.ValidationError{},
		},
		{
			name: "missing delivery address",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", nil))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 1)
			},
			request:       CheckoutRequest{DeliveryAddress: "  "},
			expectedError: &domain.ValidationError{},
		},
		{
			name: "product deactivated after it was carted",
			setup: func(f *fixture) {
				f.seed(CreateMockProduct(1, "100", stock(5)))
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 1)
				p := CreateMockProduct(1, "100", stock(5))
				p.IsActive = false
				f.seed(p)
			},
			request:       CheckoutRequest{DeliveryAddress: TestAddress},
			expectedError: &domain.ProductUnavailableError{},
			verify: func(t *testing.T, f *fixture, _ *domain.Order) {
				assert.Equal(t, int64(5), f.stockOf(t, 1))
			},
		},
		{
			name: "installation requested",
			setup: func(f *fixture) {
				p := CreateMockProduct(1, "100", nil)
				p.InstallationAvailable = true
				p.InstallationFee = money("25")
				f.seed(p)
				f.carts.AddOrUpdate(context.Background(), TestUserID, 1, 2)
			},
			request: CheckoutRequest{DeliveryAddress: TestAddress, InstallationRequested: true},
			verify: func(t *testing.T, f *fixture, o *domain.Order) {
				assertMoney(t, "50", o.InstallationFee)
				assertMoney(t, "450", o.Total)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, flatDelivery(200))
			if tt.setup != nil {
				tt.setup(f)
			}

			order, err := f.orders.Checkout(context.Background(), TestUserID, tt.request)

			if tt.expectedError != nil {
				assert.IsType(t, tt.expectedError, err)
				assert.Nil(t, order)
			} else {
				require.NoError(t, err)
				require.NotNil(t, order)
				assert.True(t, order.Total.Equal(order.LineTotal().Add(order.Tax).Add(order.DeliveryFee).Add(order.InstallationFee)))
			}
			if tt.verify != nil {
				tt.verify(t, f, order)
			}
		})
	}
}

func TestOrderService_CheckoutStorageFailure(t *testing.T) {
	store := memory.NewStore()
	store.PutProduct(CreateMockProduct(1, "100", stock(5)))
	carts := NewCartService(store)
	_, err := carts.AddOrUpdate(context.Background(), TestUserID, 1, 2)
	require.NoError(t, err)

	svc := NewOrderService(failingStore{store}, NewPricer(flatDelivery(0)), nil)
	order, err := svc.Checkout(context.Background(), TestUserID, CheckoutRequest{DeliveryAddress: TestAddress})

	var failed *domain.CheckoutFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, err.Error(), "Deadlock")
	assert.Nil(t, order)

	p, _ := store.Product(1)
	assert.Equal(t, int64(5), *p.StockQuantity)
	lines, _ := carts.List(context.Background(), TestUserID)
	assert.Len(t, lines, 1)
}

func TestOrderService_ConcurrentCheckoutForLastUnit(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", stock(1)))
	f.addToCart(t, TestUserID, 1, 1)
	f.addToCart(t, OtherUserID, 1, 1)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for _, user := range []string{TestUserID, OtherUserID} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			<-start
			_, err := f.orders.Checkout(context.Background(), user, CheckoutRequest{DeliveryAddress: TestAddress})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(user)
	}
	close(start)
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		var insufficient *domain.InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &insufficient):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(0), f.stockOf(t, 1))
}

func TestOrderService_CheckoutLocksCartBeforeProducts(t *testing.T) {
	store := memory.NewStore()
	store.PutProduct(CreateMockProduct(1, "100", stock(5)))
	_, err := NewCartService(store).AddOrUpdate(context.Background(), TestUserID, 1, 2)
	require.NoError(t, err)

	var calls []string
	svc := NewOrderService(lockTrail{store, &sync.Mutex{}, &calls}, NewPricer(flatDelivery(0)), nil)
	_, err = svc.Checkout(context.Background(), TestUserID, CheckoutRequest{DeliveryAddress: TestAddress})
	require.NoError(t, err)

	assert.Equal(t, []string{"cart for update", "products for update"}, calls)
}

func TestOrderService_ConcurrentCheckoutOfOneCart(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", stock(5)))
	f.addToCart(t, TestUserID, 1, 2)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed int
		empty  int
	)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.orders.Checkout(context.Background(), TestUserID, CheckoutRequest{DeliveryAddress: TestAddress})
			var emptyErr *domain.EmptyOrderError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.As(err, &emptyErr):
				empty++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, empty)
	assert.Equal(t, int64(3), f.stockOf(t, 1))
	orders, err := f.orders.ListUserOrders(context.Background(), TestUserID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestOrderService_PriceFrozenAfterCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flatDelivery(200))
	f.seed(CreateMockProduct(1, "100", stock(5)))
	f.addToCart(t, TestUserID, 1, 2)
	placed := f.checkout(t, TestUserID)

	f.seed(CreateMockProduct(1, "999", stock(3)))

	got, err := f.orders.GetUserOrder(ctx, TestUserID, placed.ID)
	require.NoError(t, err)
	assertMoney(t, "400", got.Total)
	assertMoney(t, "100", got.Items[0].UnitPrice)
	assertMoney(t, "200", got.Items[0].TotalPrice)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name          string
		path          []domain.OrderStatus
		to            string
		expectedError any
		wantStatus    domain.OrderStatus
		wantInvoices  int
		wantStock     int64
	}{
		{
			name:         "confirm issues invoice",
			to:           "confirmed",
			wantStatus:   domain.StatusConfirmed,
			wantInvoices: 1,
			wantStock:    3,
		},
		{
			name:         "invoice not re-issued further down the line",
			path:         []domain.OrderStatus{domain.StatusConfirmed, domain.StatusProcessing},
			to:           "shipped",
			wantStatus:   domain.StatusShipped,
			wantInvoices: 1,
			wantStock:    3,
		},
		{
			name:         "cancel from confirmed restores stock",
			path:         []domain.OrderStatus{domain.StatusConfirmed},
			to:           "cancelled",
			wantStatus:   domain.StatusCancelled,
			wantInvoices: 1,
			wantStock:    5,
		},
		{
			name:          "shipped back to pending is illegal",
			path:          []domain.OrderStatus{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped},
			to:            "pending",
			expectedError: &domain.InvalidStateTransitionError{},
			wantStatus:    domain.StatusShipped,
			wantInvoices:  1,
			wantStock:     3,
		},
		{
			name:          "skipping states is illegal",
			to:            "shipped",
			expectedError: &domain.InvalidStateTransitionError{},
			wantStatus:    domain.StatusPending,
			wantStock:     3,
		},
		{
			name:          "unknown status",
			to:            "lost",
			expectedError: &domain.ValidationError{},
			wantStatus:    domain.StatusPending,
			wantStock:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, flatDelivery(200))
			f.seed(CreateMockProduct(1, "100", stock(5)))
			f.addToCart(t, TestUserID, 1, 2)
			order := f.checkout(t, TestUserID)

			for _, step := range tt.path {
				_, err := f.orders.UpdateStatus(ctx, order.ID, string(step))
				require.NoError(t, err)
			}

			_, err := f.orders.UpdateStatus(ctx, order.ID, tt.to)
			if tt.expectedError != nil {
				assert.IsType(t, tt.expectedError, err)
			} else {
				assert.NoError(t, err)
			}

			got, err := f.orders.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantInvoices, f.store.InvoiceCount())
			assert.Equal(t, tt.wantStock, f.stockOf(t, 1))
		})
	}
}

func TestOrderService_SecondCancelRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flatDelivery(200))
	f.seed(CreateMockProduct(1, "100", stock(5)))
	f.addToCart(t, TestUserID, 1, 2)
	order := f.checkout(t, TestUserID)

	_, err := f.orders.UpdateStatus(ctx, order.ID, "confirmed")
	require.NoError(t, err)
	cancelled, err := f.orders.UpdateStatus(ctx, order.ID, "cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, int64(5), f.stockOf(t, 1))

	_, err = f.orders.UpdateStatus(ctx, order.ID, "cancelled")
	var illegal *domain.InvalidStateTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "cancelled", illegal.From)
	assert.Equal(t, int64(5), f.stockOf(t, 1))
}

func TestOrderService_UpdateStatusUnknownOrder(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	_, err := f.orders.UpdateStatus(context.Background(), 77, "confirmed")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_UpdatePaymentStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flatDelivery(200))
	f.seed(CreateMockProduct(1, "100", stock(5)))
	f.addToCart(t, TestUserID, 1, 2)
	order := f.checkout(t, TestUserID)

	_, err := f.orders.UpdatePaymentStatus(ctx, order.ID, "refunded")
	assert.IsType(t, &domain.InvalidStateTransitionError{}, err)

	paid, err := f.orders.UpdatePaymentStatus(ctx, order.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, domain.StatusConfirmed, paid.Status)
	assert.Equal(t, 1, f.store.InvoiceCount())

	refunded, err := f.orders.UpdatePaymentStatus(ctx, order.ID, "refunded")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, refunded.PaymentStatus)
	assert.Equal(t, domain.StatusConfirmed, refunded.Status)

	_, err = f.orders.UpdatePaymentStatus(ctx, order.ID, "paid")
	assert.IsType(t, &domain.InvalidStateTransitionError{}, err)
}

func TestOrderService_GetUserOrderHidesOthers(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", nil))
	f.addToCart(t, TestUserID, 1, 1)
	order := f.checkout(t, TestUserID)

	_, err := f.orders.GetUserOrder(context.Background(), OtherUserID, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_DeleteHidesEverywhere(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", nil))
	f.addToCart(t, TestUserID, 1, 1)
	order := f.checkout(t, TestUserID)
	_, err := f.orders.UpdateStatus(ctx, order.ID, "confirmed")
	require.NoError(t, err)

	require.NoError(t, f.orders.Delete(ctx, order.ID))

	_, err = f.orders.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	mine, err := f.orders.ListUserOrders(ctx, TestUserID)
	require.NoError(t, err)
	assert.Empty(t, mine)
	all, err := f.orders.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = f.orders.UpdateStatus(ctx, order.ID, "processing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	assert.ErrorIs(t, f.orders.Delete(ctx, order.ID), domain.ErrOrderNotFound)
}

func TestOrderService_ListUserOrdersCache(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*mocks.MockOrderHistoryCache)
		wantIDs    []uint64
	}{
		{
			name: "cache hit skips the store",
			setupMocks: func(c *mocks.MockOrderHistoryCache) {
				c.On("Get", mock.Anything, TestUserID).Return([]domain.Order{{ID: 42}}, true)
			},
			wantIDs: []uint64{42},
		},
		{
			name: "miss reads and fills",
			setupMocks: func(c *mocks.MockOrderHistoryCache) {
				c.On("Get", mock.Anything, TestUserID).Return(nil, false)
				c.On("Set", mock.Anything, TestUserID, mock.MatchedBy(func(o []domain.Order) bool { return len(o) == 1 })).Return()
			},
			wantIDs: []uint64{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, flatDelivery(0))
			f.seed(CreateMockProduct(1, "100", nil))
			f.addToCart(t, TestUserID, 1, 1)
			f.checkout(t, TestUserID)

			cache := new(mocks.MockOrderHistoryCache)
			tt.setupMocks(cache)
			f.orders.SetHistoryCache(cache)

			orders, err := f.orders.ListUserOrders(context.Background(), TestUserID)
			require.NoError(t, err)
			var ids []uint64
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			cache.AssertExpectations(t)
		})
	}
}

func TestOrderService_MutationsInvalidateHistory(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", nil))
	f.addToCart(t, TestUserID, 1, 1)

	cache := new(mocks.MockOrderHistoryCache)
	cache.On("Invalidate", mock.Anything, TestUserID).Return().Times(2)
	f.orders.SetHistoryCache(cache)

	order := f.checkout(t, TestUserID)
	_, err := f.orders.UpdateStatus(context.Background(), order.ID, "confirmed")
	require.NoError(t, err)

	cache.AssertExpectations(t)
}

func TestOrderService_EventsAndPublishFailure(t *testing.T) {
	store := memory.NewStore()
	store.PutProduct(CreateMockProduct(1, "100", stock(2)))
	_, err := NewCartService(store).AddOrUpdate(context.Background(), TestUserID, 1, 1)
	require.NoError(t, err)

	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, domain.EventOrderCreated, mock.MatchedBy(func(e domain.OrderEvent) bool {
		return e.Type == domain.EventOrderCreated && e.UserID == TestUserID && e.OrderID != 0
	})).Return(errors.New("broker unavailable")).Once()
	pub.On("Publish", mock.Anything, domain.EventOrderStatusChanged, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, domain.EventInvoiceCreated, mock.MatchedBy(func(e domain.OrderEvent) bool {
		return e.InvoiceNumber != ""
	})).Return(nil).Once()

	svc := NewOrderService(store, NewPricer(flatDelivery(0)), pub)
	order, err := svc.Checkout(context.Background(), TestUserID, CheckoutRequest{DeliveryAddress: TestAddress})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), order.ID, "confirmed")
	require.NoError(t, err)

	pub.AssertExpectations(t)
}
