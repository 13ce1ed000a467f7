package infra

import (
	"context"

	"furniture-order-service/internal/domain"

	"github.com/shopspring/decimal"
)

// EventPublisher delivers order events to a broker or live feed.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

type PaymentRequest struct {
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// PaymentGateway is the external payment provider boundary.
type PaymentGateway interface {
	Initiate(ctx context.Context, req PaymentRequest) (*domain.PaymentSession, error)
	Verify(ctx context.Context, transactionRef string) (*domain.PaymentVerification, error)
}
