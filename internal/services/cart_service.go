package services

import (
	"context"
	"fmt"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type CartService struct {
	store repository.Store
}

func NewCartService(store repository.Store) *CartService {
	return &CartService{store: store}
}

// AddOrUpdate sets the quantity for a product, replacing any earlier value.
// Stock is not checked here.
func (s *CartService) AddOrUpdate(ctx context.Context, userID string, productID uint64, quantity int64) (*domain.CartEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	products, err := s.store.Products().FindByIDs(ctx, []uint64{productID})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, &domain.ValidationError{Field: "productId", Reason: fmt.Sprintf("product %d does not exist", productID)}
	}

	entry := &domain.CartEntry{UserID: userID, ProductID: productID, Quantity: quantity}
	if err := s.store.Carts().Upsert(ctx, entry); err != nil {
		log.Error().Err(err).Str("user_id", userID).Uint64("product_id", productID).Msg("cart upsert failed")
		return nil, err
	}
	return entry, nil
}

// Remove is a no-op when the entry does not exist.
func (s *CartService) Remove(ctx context.Context, userID string, productID uint64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.store.Carts().Delete(ctx, userID, productID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.store.Carts().Clear(ctx, userID)
}

// List joins each entry with the live product row for display.
func (s *CartService) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	entries, err := s.store.Carts().ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []domain.CartLine{}, nil
	}

	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}
	products, err := s.store.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, e := range entries {
		line := domain.CartLine{ProductID: e.ProductID, Quantity: e.Quantity}
		if p, ok := byID[e.ProductID]; ok {
			line.Name = p.Name
			line.UnitPrice = p.EffectivePrice()
			line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(e.Quantity))
			line.Available = p.Purchasable()
			line.InStock = !p.TracksStock() || *p.StockQuantity >= e.Quantity
			line.StockQuantity = p.StockQuantity
			line.InstallationAvailable = p.InstallationAvailable
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// selectEntries narrows the cart to the requested products, or takes the whole
// cart when none are named.
func selectEntries(entries []domain.CartEntry, selected []uint64) ([]domain.LineRequest, []uint64, error) {
	inCart := make(map[uint64]domain.CartEntry, len(entries))
	for _, e := range entries {
		inCart[e.ProductID] = e
	}

	var picked []domain.CartEntry
	if len(selected) == 0 {
		picked = entries
	} else {
		seen := make(map[uint64]bool, len(selected))
		for _, id := range selected {
			if seen[id] {
				continue
			}
			seen[id] = true
			e, ok := inCart[id]
			if !ok {
				return nil, nil, &domain.ValidationError{Field: "selectedItems", Reason: fmt.Sprintf("product %d is not in the cart", id)}
			}
			picked = append(picked, e)
		}
	}
	if len(picked) == 0 {
		return nil, nil, &domain.EmptyOrderError{}
	}

	lines := make([]domain.LineRequest, len(picked))
	ids := make([]uint64, len(picked))
	for i, e := range picked {
		lines[i] = domain.LineRequest{ProductID: e.ProductID, Quantity: e.Quantity}
		ids[i] = e.ProductID
	}
	return lines, ids, nil
}

func requireUser(userID string) error {
	if userID == "" {
		return &domain.ValidationError{Field: "userId", Reason: "authenticated user required"}
	}
	return nil
}
