package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// fulfillmentTransitions is the complete set of legal fulfillment moves.
// Anything absent from this table is rejected.
var fulfillmentTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := fulfillmentTransitions[st]; !ok {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown order status %q", s)}
	}
	return st, nil
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range fulfillmentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(fulfillmentTransitions[s]) == 0
}

// Order is a price-frozen snapshot. Money fields are written once at creation;
// only the status, payment and lifecycle columns change afterwards.
type Order struct {
	ID               uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Reference        string          `json:"reference" gorm:"size:64;not null;uniqueIndex"`
	UserID           string          `json:"userId" gorm:"size:128;not null;index"`
	Status           OrderStatus     `json:"status" gorm:"size:20;not null;default:'pending'"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus" gorm:"size:20;not null;default:'pending'"`
	Subtotal         decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Tax              decimal.Decimal `json:"tax" gorm:"type:decimal(12,2);not null"`
	DeliveryFee      decimal.Decimal `json:"deliveryFee" gorm:"type:decimal(12,2);not null"`
	InstallationFee  decimal.Decimal `json:"installationFee" gorm:"type:decimal(12,2);not null"`
	Total            decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	DeliveryAddress  string          `json:"deliveryAddress" gorm:"size:512;not null"`
	IsQuote          bool            `json:"isQuote" gorm:"not null;default:false"`
	QuoteExpiryDate  *time.Time      `json:"quoteExpiryDate,omitempty"`
	SourceQuoteID    *uint64         `json:"sourceQuoteId,omitempty" gorm:"index"`
	ConvertedOrderID *uint64         `json:"convertedOrderId,omitempty"`
	TransactionRef   *string         `json:"transactionRef,omitempty" gorm:"size:128;uniqueIndex"`
	PaymentID        *string         `json:"paymentId,omitempty" gorm:"size:128"`
	CheckoutURL      string          `json:"-" gorm:"size:1024"`
	StockReserved    bool            `json:"-" gorm:"not null;default:false"`
	StockRestored    bool            `json:"-" gorm:"not null;default:false"`
	Items            []OrderLineItem `json:"items" gorm:"foreignKey:OrderID"`
	Lifecycle        Lifecycle       `json:"-" gorm:"size:16;not null;default:'active';index"`
	DeletedAt        *time.Time      `json:"-"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time       `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderLineItem is immutable once written; unitPrice is never re-read from the catalog.
type OrderLineItem struct {
	ID                   uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID              uint64          `json:"orderId" gorm:"not null;index"`
	ProductID            uint64          `json:"productId" gorm:"not null;index"`
	ProductName          string          `json:"productName" gorm:"size:255"`
	Quantity             int64           `json:"quantity" gorm:"not null"`
	UnitPrice            decimal.Decimal `json:"unitPrice" gorm:"type:decimal(12,2);not null"`
	TotalPrice           decimal.Decimal `json:"totalPrice" gorm:"type:decimal(12,2);not null"`
	InstallationRequired bool            `json:"installationRequired" gorm:"not null;default:false"`
	InstallationFee      decimal.Decimal `json:"installationFee" gorm:"type:decimal(12,2);not null"`
	Lifecycle            Lifecycle       `json:"-" gorm:"size:16;not null;default:'active'"`
	CreatedAt            time.Time       `json:"createdAt" gorm:"autoCreateTime"`
}

// TransitionTo applies a fulfillment move or returns InvalidStateTransitionError
// without touching the order. Quotes can only be cancelled.
func (o *Order) TransitionTo(to OrderStatus) error {
	illegal := &InvalidStateTransitionError{Machine: "fulfillment", From: string(o.Status), To: string(to)}
	if !o.Status.CanTransitionTo(to) {
		return illegal
	}
	if o.IsQuote && to != StatusCancelled {
		return illegal
	}
	o.Status = to
	return nil
}

// ApplyPayment moves the payment state machine.
func (o *Order) ApplyPayment(to PaymentStatus) error {
	if !o.PaymentStatus.CanTransitionTo(to) {
		return &InvalidStateTransitionError{Machine: "payment", From: string(o.PaymentStatus), To: string(to)}
	}
	o.PaymentStatus = to
	return nil
}

func (o *Order) QuoteExpired(now time.Time) bool {
	return o.IsQuote && o.QuoteExpiryDate != nil && now.After(*o.QuoteExpiryDate)
}

func (o *Order) LineTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.TotalPrice)
	}
	return sum
}

// NeedsStockRestore reports whether a cancellation still owes stock back to the ledger.
func (o *Order) NeedsStockRestore() bool {
	return o.StockReserved && !o.StockRestored
}
