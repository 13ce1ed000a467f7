package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   nil,
	PaymentRefunded: nil,
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := paymentTransitions[st]; !ok {
		return "", &ValidationError{Field: "paymentStatus", Reason: fmt.Sprintf("unknown payment status %q", s)}
	}
	return st, nil
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Settled is true once the gateway outcome has been recorded.
func (s PaymentStatus) Settled() bool {
	return s != PaymentPending
}

// GatewayStatus is what the payment provider reports for a transaction.
type GatewayStatus string

const (
	GatewaySuccess GatewayStatus = "success"
	GatewayFailed  GatewayStatus = "failed"
	GatewayPending GatewayStatus = "pending"
)

type PaymentSession struct {
	CheckoutURL    string `json:"checkoutUrl"`
	TransactionRef string `json:"transactionRef"`
}

type PaymentVerification struct {
	Status    GatewayStatus
	Amount    decimal.Decimal
	PaymentID string
}

// PaymentResult is what reconciliation reports back to callers.
type PaymentResult struct {
	OrderID        uint64        `json:"orderId"`
	TransactionRef string        `json:"transactionRef"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	Status         OrderStatus   `json:"status"`
	PaymentID      string        `json:"paymentId,omitempty"`
}
