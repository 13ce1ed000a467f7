package http

import (
	"net/http"
	"strconv"
	"time"

	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/metrics"
	"furniture-order-service/internal/services"

	"github.com/gin-gonic/gin"
)

// Options carries the optional collaborators of the HTTP layer. Zero values
// switch the matching feature off.
type Options struct {
	JWTSecret       string
	WebhookSecret   string
	SkipWebhookSig  bool
	VerifyRateLimit float64
	Idempotency     IdempotencyStore
	Feed            http.Handler
	Metrics         *metrics.Metrics
}

type Handler struct {
	carts    *services.CartService
	orders   *services.OrderService
	quotes   *services.QuoteService
	payments *services.PaymentService

	auth          *Authenticator
	idem          IdempotencyStore
	feed          http.Handler
	metrics       *metrics.Metrics
	limiter       *clientLimiter
	webhookSecret string
	skipSig       bool
}

func NewHandler(carts *services.CartService, orders *services.OrderService, quotes *services.QuoteService,
	payments *services.PaymentService, opts Options) *Handler {
	h := &Handler{
		carts:         carts,
		orders:        orders,
		quotes:        quotes,
		payments:      payments,
		auth:          NewAuthenticator(opts.JWTSecret),
		idem:          opts.Idempotency,
		feed:          opts.Feed,
		metrics:       opts.Metrics,
		webhookSecret: opts.WebhookSecret,
		skipSig:       opts.SkipWebhookSig,
	}
	if opts.VerifyRateLimit > 0 {
		burst := int(opts.VerifyRateLimit * 2)
		if burst < 1 {
			burst = 1
		}
		h.limiter = newClientLimiter(opts.VerifyRateLimit, burst)
	}
	return h
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(h.observe())
	r.GET("/health", h.Health)

	payment := r.Group("/payment", h.rateLimit())
	payment.GET("/verify/:transactionRef", h.VerifyPayment)
	payment.POST("/webhook", h.PaymentWebhook)

	user := r.Group("/user", h.authenticate())
	user.GET("/cart", h.require(domain.CapManageCart), h.ListCart)
	user.POST("/cart", h.require(domain.CapManageCart), h.AddCartItem)
	user.DELETE("/cart/:productId", h.require(domain.CapManageCart), h.RemoveCartItem)
	user.DELETE("/cart", h.require(domain.CapManageCart), h.ClearCart)
	user.POST("/checkout", h.require(domain.CapPlaceOrder), h.idempotent(), h.Checkout)
	user.GET("/orders", h.require(domain.CapViewOwnOrders), h.ListUserOrders)
	user.GET("/orders/:id", h.require(domain.CapViewOwnOrders), h.GetUserOrder)
	user.POST("/quotes", h.require(domain.CapPlaceOrder), h.idempotent(), h.CreateQuote)
	user.POST("/quotes/:id/convert", h.require(domain.CapPlaceOrder), h.idempotent(), h.ConvertQuote)
	user.POST("/payment/initiate", h.require(domain.CapInitiatePayment), h.idempotent(), h.InitiatePayment)

	admin := r.Group("/admin", h.authenticate())
	admin.GET("/orders", h.require(domain.CapViewAllOrders), h.ListOrders)
	admin.GET("/orders/export", h.require(domain.CapExportOrders), h.ExportOrders)
	admin.GET("/orders/ws", h.require(domain.CapViewAllOrders), h.OrderFeed)
	admin.PUT("/orders/:id/status", h.require(domain.CapTransitionOrders), h.idempotent(), h.UpdateStatus)
	admin.PUT("/orders/:id/payment-status", h.require(domain.CapManagePayments), h.UpdatePaymentStatus)
	admin.DELETE("/orders/:id", h.require(domain.CapDeleteOrders), h.DeleteOrder)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
