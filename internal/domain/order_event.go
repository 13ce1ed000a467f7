package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderPayment       = "order.payment_updated"
	EventOrderDeleted       = "order.deleted"
	EventInvoiceCreated     = "invoice.created"
	EventQuoteCreated       = "quote.created"
	EventQuoteConverted     = "quote.converted"
)

type OrderEvent struct {
	Type          string          `json:"type"`
	OrderID       uint64          `json:"orderId"`
	Reference     string          `json:"reference"`
	UserID        string          `json:"userId"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Total         decimal.Decimal `json:"total"`
	IsQuote       bool            `json:"isQuote"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func NewOrderEvent(eventType string, o *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       o.ID,
		Reference:     o.Reference,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		IsQuote:       o.IsQuote,
		OccurredAt:    at,
	}
}

// PartitionKey keeps every event of one order on the same partition.
func (e OrderEvent) PartitionKey() string {
	return strconv.FormatUint(e.OrderID, 10)
}
