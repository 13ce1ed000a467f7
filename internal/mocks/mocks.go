package mocks

import (
	"context"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/infra"
	"furniture-order-service/internal/infra/cache"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Initiate(ctx context.Context, req infra.PaymentRequest) (*domain.PaymentSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentSession), args.Error(1)
}

func (m *MockPaymentGateway) Verify(ctx context.Context, transactionRef string) (*domain.PaymentVerification, error) {
	args := m.Called(ctx, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentVerification), args.Error(1)
}

type MockOrderHistoryCache struct {
	mock.Mock
}

func (m *MockOrderHistoryCache) Get(ctx context.Context, userID string) ([]domain.Order, bool) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).([]domain.Order), args.Bool(1)
}

func (m *MockOrderHistoryCache) Set(ctx context.Context, userID string, orders []domain.Order) {
	m.Called(ctx, userID, orders)
}

func (m *MockOrderHistoryCache) Invalidate(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Lookup(ctx context.Context, key string) (*cache.StoredResponse, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*cache.StoredResponse), args.Bool(1), args.Error(2)
}

func (m *MockIdempotencyStore) Save(ctx context.Context, key string, resp cache.StoredResponse) error {
	args := m.Called(ctx, key, resp)
	return args.Error(0)
}
