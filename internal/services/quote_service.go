package services

import (
	"context"
	"strings"
	"time"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/repository"

	"github.com/rs/zerolog/log"
)

const maxQuoteValidityDays = 365

type QuoteRequest struct {
	SelectedProductIDs    []uint64
	DeliveryAddress       string
	InstallationRequested bool
	ValidityDays          int
}

// QuoteService issues price-locked, expiring offers. A quote reserves no
// stock and leaves the cart as it was.
type QuoteService struct {
	orders   *OrderService
	validity time.Duration
}

func NewQuoteService(orders *OrderService, validity time.Duration) *QuoteService {
	return &QuoteService{orders: orders, validity: validity}
}

func (s *QuoteService) Create(ctx context.Context, userID string, req QuoteRequest) (*domain.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, &domain.ValidationError{Field: "deliveryAddress", Reason: "required"}
	}
	validity := s.validity
	if req.ValidityDays != 0 {
		if req.ValidityDays < 0 || req.ValidityDays > maxQuoteValidityDays {
			return nil, &domain.ValidationError{Field: "validityDays", Reason: "must be between 1 and 365"}
		}
		validity = time.Duration(req.ValidityDays) * 24 * time.Hour
	}
	expiry := s.orders.now().Add(validity)

	var quote *domain.Order
	err := s.orders.store.Transaction(ctx, func(tx repository.Store) error {
		entries, err := tx.Carts().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		lines, _, err := selectEntries(entries, req.SelectedProductIDs)
		if err != nil {
			return err
		}
		quote, err = s.orders.place(ctx, tx, placement{
			userID:       userID,
			lines:        lines,
			address:      address,
			installation: req.InstallationRequested,
			quoteExpiry:  &expiry,
		})
		return err
	})
	if err != nil {
		s.orders.metrics.Checkout("quote", checkoutOutcome(err))
		return nil, asCheckoutError(err)
	}

	s.orders.metrics.Checkout("quote", "ok")
	log.Info().Uint64("order_id", quote.ID).Str("user_id", userID).Time("expires_at", expiry).Msg("quote created")
	s.orders.invalidate(ctx, userID)
	s.orders.publish(ctx, domain.EventQuoteCreated, quote, "")
	return quote, nil
}

// Convert runs a full checkout over a live quote's lines with fresh prices
// and stock. The quote itself is kept and points at the new order.
func (s *QuoteService) Convert(ctx context.Context, userID string, quoteID uint64) (*domain.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	var quote, order *domain.Order
	err := s.orders.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		quote, err = tx.Orders().FindByIDForUpdate(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote == nil || quote.UserID != userID || !quote.IsQuote {
			return domain.ErrOrderNotFound
		}
		if quote.QuoteExpired(s.orders.now()) {
			return &domain.QuoteExpiredError{QuoteID: quote.ID, ExpiredAt: *quote.QuoteExpiryDate}
		}
		if quote.ConvertedOrderID != nil {
			return &domain.ValidationError{Field: "quoteId", Reason: "quote has already been converted"}
		}
		if quote.Status != domain.StatusPending {
			return &domain.InvalidStateTransitionError{Machine: "quote", From: string(quote.Status), To: "converted"}
		}

		lines := make([]domain.LineRequest, 0, len(quote.Items))
		installation := false
		for _, it := range quote.Items {
			lines = append(lines, domain.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
			installation = installation || it.InstallationRequired
		}
		source := quote.ID
		order, err = s.orders.place(ctx, tx, placement{
			userID:       userID,
			lines:        lines,
			address:      quote.DeliveryAddress,
			installation: installation,
			sourceQuote:  &source,
		})
		if err != nil {
			return err
		}
		converted := order.ID
		quote.ConvertedOrderID = &converted
		return tx.Orders().UpdateState(ctx, quote)
	})
	if err != nil {
		s.orders.metrics.Checkout("quote_conversion", checkoutOutcome(err))
		log.Warn().Err(err).Uint64("quote_id", quoteID).Str("user_id", userID).Msg("quote conversion rejected")
		return nil, asCheckoutError(err)
	}

	s.orders.metrics.Checkout("quote_conversion", "ok")
	log.Info().Uint64("quote_id", quoteID).Uint64("order_id", order.ID).Msg("quote converted")
	s.orders.invalidate(ctx, userID)
	s.orders.publish(ctx, domain.EventQuoteConverted, quote, "")
	s.orders.publish(ctx, domain.EventOrderCreated, order, "")
	return order, nil
}
