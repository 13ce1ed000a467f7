package services

import (
	"context"
	"testing"

	"furniture-order-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_AddOrUpdate(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		productID   uint64
		quantity    int64
		expectedErr any
	}{
		{name: "adds entry", userID: TestUserID, productID: 1, quantity: 2},
		{name: "stock is not checked", userID: TestUserID, productID: 1, quantity: 500},
		{name: "zero quantity", userID: TestUserID, productID: 1, quantity: 0, expectedErr: &domain.ValidationError{}},
		{name: "negative quantity", userID: TestUserID, productID: 1, quantity: -3, expectedErr: &domain.ValidationError{}},
		{name: "unknown product", userID: TestUserID, productID: 404, quantity: 1, expectedErr: &domain.ValidationError{}},
		{name: "anonymous", productID: 1, quantity: 1, expectedErr: &domain.ValidationError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, flatDelivery(0))
			f.seed(CreateMockProduct(1, "100", stock(5)))

			entry, err := f.carts.AddOrUpdate(context.Background(), tt.userID, tt.productID, tt.quantity)

			if tt.expectedErr != nil {
				assert.IsType(t, tt.expectedErr, err)
				assert.Nil(t, entry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.quantity, entry.Quantity)
		})
	}
}

func TestCartService_UpdateReplacesQuantity(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", stock(5)))

	f.addToCart(t, TestUserID, 1, 2)
	f.addToCart(t, TestUserID, 1, 4)

	lines, err := f.carts.List(context.Background(), TestUserID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(4), lines[0].Quantity)
}

func TestCartService_ListReadsLiveProduct(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", stock(1)), CreateMockProduct(2, "50", nil))
	f.addToCart(t, TestUserID, 1, 2)
	f.addToCart(t, TestUserID, 2, 1)
	f.addToCart(t, OtherUserID, 2, 9)

	repriced := CreateMockProduct(1, "120", stock(1))
	repriced.DiscountPrice = decimal.NewNullDecimal(money("110"))
	repriced.DiscountActive = true
	f.seed(repriced)

	lines, err := f.carts.List(context.Background(), TestUserID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assertMoney(t, "110", lines[0].UnitPrice)
	assertMoney(t, "220", lines[0].LineTotal)
	assert.False(t, lines[0].InStock)
	assert.True(t, lines[0].Available)

	assert.True(t, lines[1].InStock)
	assertMoney(t, "50", lines[1].LineTotal)
}

func TestCartService_ListFlagsUnavailable(t *testing.T) {
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", nil))
	f.addToCart(t, TestUserID, 1, 1)

	hidden := CreateMockProduct(1, "100", nil)
	hidden.IsActive = false
	f.seed(hidden)

	lines, err := f.carts.List(context.Background(), TestUserID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.False(t, lines[0].Available)
}

func TestCartService_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flatDelivery(0))
	f.seed(CreateMockProduct(1, "100", nil), CreateMockProduct(2, "100", nil))
	f.addToCart(t, TestUserID, 1, 1)
	f.addToCart(t, TestUserID, 2, 1)

	require.NoError(t, f.carts.Remove(ctx, TestUserID, 1))
	require.NoError(t, f.carts.Remove(ctx, TestUserID, 1))

	lines, err := f.carts.List(ctx, TestUserID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, uint64(2), lines[0].ProductID)

	require.NoError(t, f.carts.Clear(ctx, TestUserID))
	lines, err = f.carts.List(ctx, TestUserID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}
