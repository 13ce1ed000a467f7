package http

import "furniture-order-service/internal/domain"

type AddCartItemRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutRequest struct {
	SelectedItems         []uint64 `json:"selectedItems"`
	DeliveryAddress       string   `json:"deliveryAddress"`
	InstallationRequested bool     `json:"installationRequested"`
}

type CreateQuoteRequest struct {
	SelectedItems         []uint64 `json:"selectedItems"`
	DeliveryAddress       string   `json:"deliveryAddress"`
	InstallationRequested bool     `json:"installationRequested"`
	ValidityDays          int      `json:"validityDays"`
}

type InitiatePaymentRequest struct {
	OrderID uint64 `json:"orderId" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

type CartResponse struct {
	Items []domain.CartLine `json:"items"`
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
