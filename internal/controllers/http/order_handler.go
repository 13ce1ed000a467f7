package http

import (
	"net/http"

	"furniture-order-service/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.orders.Checkout(c.Request.Context(), userID(c), services.CheckoutRequest{
		SelectedProductIDs:    req.SelectedItems,
		DeliveryAddress:       req.DeliveryAddress,
		InstallationRequested: req.InstallationRequested,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListUserOrders(c *gin.Context) {
	orders, err := h.orders.ListUserOrders(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OrdersResponse{Orders: orders})
}

func (h *Handler) GetUserOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetUserOrder(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CreateQuote(c *gin.Context) {
	var req CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	quote, err := h.quotes.Create(c.Request.Context(), userID(c), services.QuoteRequest{
		SelectedProductIDs:    req.SelectedItems,
		DeliveryAddress:       req.DeliveryAddress,
		InstallationRequested: req.InstallationRequested,
		ValidityDays:          req.ValidityDays,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *Handler) ConvertQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.quotes.Convert(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
