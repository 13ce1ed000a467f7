package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrPaymentNotInitiable = errors.New("payment cannot be initiated for this order")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

type ProductUnavailableError struct {
	ProductID uint64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is unavailable", e.ProductID)
}

type InsufficientStockError struct {
	ProductID uint64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

type EmptyOrderError struct{}

func (e *EmptyOrderError) Error() string {
	return "no items selected for order"
}

type InvalidStateTransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Machine, e.From, e.To)
}

type UnknownTransactionError struct {
	TransactionRef string
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("unknown transaction %q", e.TransactionRef)
}

type PaymentVerificationTimeoutError struct {
	TransactionRef string
	Attempts       int
	LastErr        error
}

func (e *PaymentVerificationTimeoutError) Error() string {
	msg := fmt.Sprintf("payment verification for %q did not settle after %d attempts", e.TransactionRef, e.Attempts)
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *PaymentVerificationTimeoutError) Unwrap() error {
	return e.LastErr
}

type PaymentAmountMismatchError struct {
	TransactionRef string
	Expected       decimal.Decimal
	Verified       decimal.Decimal
}

func (e *PaymentAmountMismatchError) Error() string {
	return fmt.Sprintf("payment %q amount %s does not match order total %s", e.TransactionRef, e.Verified, e.Expected)
}

type QuoteExpiredError struct {
	QuoteID   uint64
	ExpiredAt time.Time
}

func (e *QuoteExpiredError) Error() string {
	return fmt.Sprintf("quote %d expired at %s", e.QuoteID, e.ExpiredAt.Format(time.RFC3339))
}

// CheckoutFailedError wraps storage failures inside the checkout transaction.
// Nothing from the attempt was committed; the caller may retry.
type CheckoutFailedError struct {
	Err error
}

func (e *CheckoutFailedError) Error() string {
	return "checkout failed: " + e.Err.Error()
}

func (e *CheckoutFailedError) Unwrap() error {
	return e.Err
}

// IsDomainError reports whether err belongs to the typed business taxonomy
// rather than being an infrastructure failure.
func IsDomainError(err error) bool {
	var (
		validation  *ValidationError
		unavailable *ProductUnavailableError
		stock       *InsufficientStockError
		empty       *EmptyOrderError
		transition  *InvalidStateTransitionError
		unknown     *UnknownTransactionError
		timeout     *PaymentVerificationTimeoutError
		mismatch    *PaymentAmountMismatchError
		expired     *QuoteExpiredError
		checkout    *CheckoutFailedError
	)
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrPaymentNotInitiable):
		return true
	case errors.As(err, &validation), errors.As(err, &unavailable), errors.As(err, &stock),
		errors.As(err, &empty), errors.As(err, &transition), errors.As(err, &unknown),
		errors.As(err, &timeout), errors.As(err, &mismatch), errors.As(err, &expired),
		errors.As(err, &checkout):
		return true
	}
	return false
}
