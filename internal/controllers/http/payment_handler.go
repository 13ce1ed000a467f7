package http

import (
	"net/http"

	"furniture-order-service/internal/infra/telr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *Handler) InitiatePayment(c *gin.Context) {
	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	session, err := h.payments.Initiate(c.Request.Context(), userID(c), req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	res, err := h.payments.Verify(c.Request.Context(), c.Param("transactionRef"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PaymentWebhook treats a gateway notification only as a prompt to verify;
// the posted status is never trusted.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		badRequest(c, "failed to parse webhook form")
		return
	}
	form := c.Request.PostForm
	if !h.skipSig && !telr.VerifySignature(h.webhookSecret, form) {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook signature rejected")
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "invalid webhook signature", Code: "forbidden"})
		return
	}

	ref := telr.WebhookOrderRef(form)
	if ref == "" {
		badRequest(c, "tran_order is required")
		return
	}
	res, err := h.payments.Verify(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
