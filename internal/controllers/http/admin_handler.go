package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"furniture-order-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OrdersResponse{Orders: orders})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdatePaymentStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.orders.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) OrderFeed(c *gin.Context) {
	if h.feed == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "live feed is disabled", Code: "not_found"})
		return
	}
	h.feed.ServeHTTP(c.Writer, c.Request)
}

var exportHeaders = []string{
	"ID", "Reference", "UserID", "Status", "PaymentStatus", "Subtotal", "Tax",
	"DeliveryFee", "InstallationFee", "Total", "IsQuote", "Items", "TransactionRef", "CreatedAt",
}

// ExportOrders streams every active order as an xlsx sheet.
func (h *Handler) ExportOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	file, err := buildOrderSheet(orders)
	if err != nil {
		respondError(c, err)
		return
	}

	name := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+name)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		c.Error(err)
	}
}

func buildOrderSheet(orders []domain.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}
	header := sheet.AddRow()
	for _, name := range exportHeaders {
		header.AddCell().SetValue(name)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.Reference)
		row.AddCell().SetValue(o.UserID)
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(string(o.PaymentStatus))
		row.AddCell().SetValue(o.Subtotal.StringFixed(2))
		row.AddCell().SetValue(o.Tax.StringFixed(2))
		row.AddCell().SetValue(o.DeliveryFee.StringFixed(2))
		row.AddCell().SetValue(o.InstallationFee.StringFixed(2))
		row.AddCell().SetValue(o.Total.StringFixed(2))
		row.AddCell().SetValue(o.IsQuote)

		lines := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			lines = append(lines, fmt.Sprintf("%d x%d @ %s", it.ProductID, it.Quantity, it.UnitPrice.StringFixed(2)))
		}
		row.AddCell().SetValue(strings.Join(lines, "; "))

		ref := ""
		if o.TransactionRef != nil {
			ref = *o.TransactionRef
		}
		row.AddCell().SetValue(ref)
		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}
