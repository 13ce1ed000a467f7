package http

import (
	"context"
	"errors"
	"net/http"

	"furniture-order-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps an error onto its HTTP status and a stable machine code.
func statusFor(err error) (int, string) {
	var (
		validation  *domain.ValidationError
		empty       *domain.EmptyOrderError
		unavailable *domain.ProductUnavailableError
		stock       *domain.InsufficientStockError
		transition  *domain.InvalidStateTransitionError
		expired     *domain.QuoteExpiredError
		mismatch    *domain.PaymentAmountMismatchError
		unknown     *domain.UnknownTransactionError
		timeout     *domain.PaymentVerificationTimeoutError
		checkout    *domain.CheckoutFailedError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error"
	case errors.As(err, &empty):
		return http.StatusBadRequest, "empty_order"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.As(err, &unavailable):
		return http.StatusConflict, "product_unavailable"
	case errors.As(err, &stock):
		return http.StatusConflict, "insufficient_stock"
	case errors.As(err, &transition):
		return http.StatusConflict, "invalid_transition"
	case errors.As(err, &expired):
		return http.StatusConflict, "quote_expired"
	case errors.Is(err, domain.ErrPaymentNotInitiable):
		return http.StatusConflict, "payment_not_initiable"
	case errors.As(err, &mismatch):
		return http.StatusUnprocessableEntity, "amount_mismatch"
	case errors.As(err, &unknown):
		return http.StatusNotFound, "unknown_transaction"
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, "verification_timeout"
	case errors.As(err, &checkout):
		return http.StatusInternalServerError, "checkout_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Str("code", code).Msg("request failed")
		if code == "internal_error" {
			msg = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}
