package services

import (
	"context"
	"testing"
	"time"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/mocks"
	"furniture-order-service/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	TestUserID  = "user-1"
	OtherUserID = "user-2"
	TestAddress = "12 Palm Street, Dubai"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memory.Store
	orders    *OrderService
	carts     *CartService
	payments  *PaymentService
	quotes    *QuoteService
	gateway   *mocks.MockPaymentGateway
	publisher *mocks.MockPublisher
	now       time.Time
}

func newFixture(t *testing.T, rules PricingRules) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		gateway:   new(mocks.MockPaymentGateway),
		publisher: new(mocks.MockPublisher),
		now:       testNow,
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.orders = NewOrderService(f.store, NewPricer(rules), f.publisher)
	f.orders.SetClock(func() time.Time { return f.now })
	f.carts = NewCartService(f.store)
	f.payments = NewPaymentService(f.orders, f.gateway, RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond})
	f.quotes = NewQuoteService(f.orders, 7*24*time.Hour)
	return f
}

func flatDelivery(fee int64) PricingRules {
	return PricingRules{
		TaxRate:         decimal.Zero,
		DeliveryFee:     decimal.NewFromInt(fee),
		InstallationFee: decimal.Zero,
	}
}

func stock(n int64) *int64 {
	return &n
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateMockProduct(id uint64, price string, qty *int64) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          "Product",
		Price:         money(price),
		StockQuantity: qty,
		IsActive:      true,
		Lifecycle:     domain.LifecycleActive,
	}
}

func (f *fixture) seed(products ...domain.Product) {
	for _, p := range products {
		f.store.PutProduct(p)
	}
}

func (f *fixture) addToCart(t *testing.T, userID string, productID uint64, qty int64) {
	t.Helper()
	_, err := f.carts.AddOrUpdate(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stockOf(t *testing.T, productID uint64) int64 {
	t.Helper()
	p, ok := f.store.Product(productID)
	require.True(t, ok)
	require.NotNil(t, p.StockQuantity)
	return *p.StockQuantity
}

func (f *fixture) checkout(t *testing.T, userID string) *domain.Order {
	t.Helper()
	o, err := f.orders.Checkout(context.Background(), userID, CheckoutRequest{DeliveryAddress: TestAddress})
	require.NoError(t, err)
	return o
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "want %s, got %s", want, got)
}
