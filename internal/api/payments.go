package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"payment-service/internal/gateway"
	"payment-service/internal/service"
	"payment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgConfigError      = "payment configuration error"
	msgInvalidSignature = "Invalid payment signature"
	msgGatewayDown      = "Payment gateway unavailable. Please try again."

	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
)

// Checkout error codes passed back to the storefront
const (
	callbackPaymentFailed    = "payment_failed"
	callbackInvalidSignature = "invalid_signature"
	callbackOrderNotFound    = "order_not_found"
	callbackDBError          = "db_error"
	callbackServerError      = "server_error"
)

type createOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type verifyPaymentRequest struct {
	OrderID           string `json:"order_id" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// createOrder opens a gateway order for a pending order
func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}

	if !h.deps.Payments.Configured() {
		h.logger.Error("Gateway credentials missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgConfigError})
		return
	}

	gwOrder, err := h.deps.Checkout.CreatePaymentIntent(c.Request.Context(), req.OrderID)
	if err != nil {
		h.writeCheckoutError(c, req.OrderID, err)
		return
	}

	c.JSON(http.StatusOK, gwOrder)
}

func (h *Handler) writeCheckoutError(c *gin.Context, orderID string, err error) {
	var limited *service.RateLimitError
	var unavailable *service.ProductUnavailableError

	switch {
	case errors.Is(err, service.ErrInvalidOrderID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many payment attempts. Please wait and try again."})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrOrderNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not awaiting payment"})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": unavailable.Error()})
	case gateway.IsTransient(err):
		h.logger.Error("Gateway unavailable during checkout", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": msgGatewayDown})
	default:
		h.logger.Error("Failed to create payment order", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment order"})
	}
}

// verifyPayment confirms a checkout completed in the browser
func (h *Handler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"verified": false, "error": "Missing required payment fields"})
		return
	}

	if !h.deps.Payments.Configured() {
		h.logger.Error("Gateway credentials missing")
		c.JSON(http.StatusInternalServerError, gin.H{"verified": false, "error": msgConfigError})
		return
	}

	if !h.deps.Payments.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		util.SignatureFailuresTotal.WithLabelValues("verify").Inc()
		h.logger.Warn("Invalid payment signature",
			zap.String("order_id", req.OrderID),
			zap.String("gateway_order_id", req.RazorpayOrderID))
		c.JSON(http.StatusUnauthorized, gin.H{"verified": false, "error": msgInvalidSignature})
		return
	}

	ctx := c.Request.Context()
	gwOrder, err := h.deps.Payments.FetchGatewayOrder(ctx, req.RazorpayOrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"verified": false, "error": msgInvalidSignature})
			return
		}
		h.logger.Error("Failed to fetch gateway order",
			zap.String("gateway_order_id", req.RazorpayOrderID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"verified": false, "error": msgGatewayDown})
		return
	}

	// A valid signature for another order's payment must not pay this one.
	if gwOrder.Receipt != req.OrderID {
		util.SignatureFailuresTotal.WithLabelValues("receipt_mismatch").Inc()
		h.logger.Warn("Gateway order receipt does not match order",
			zap.String("order_id", req.OrderID),
			zap.String("gateway_order_id", gwOrder.ID))
		c.JSON(http.StatusUnauthorized, gin.H{"verified": false, "error": msgInvalidSignature})
		return
	}

	result := h.deps.Payments.ProcessPayment(ctx, req.OrderID, req.RazorpayPaymentID, gwOrder.Amount)
	if result.Success() {
		c.JSON(http.StatusOK, gin.H{"verified": true, "message": result.Message()})
		return
	}

	c.JSON(finalizeStatusCode(result.Kind), gin.H{"verified": false, "error": result.Message()})
}

func finalizeStatusCode(kind service.FinalizeKind) int {
	switch kind {
	case service.ResultPaid, service.ResultAlreadyPaid:
		return http.StatusOK
	case service.ResultStockConflict, service.ResultInvalidStatus:
		return http.StatusConflict
	case service.ResultAmountMismatch:
		return http.StatusBadRequest
	case service.ResultNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// paymentCallback handles the browser form post from hosted checkout and
// redirects back to the storefront.
func (h *Handler) paymentCallback(c *gin.Context) {
	gatewayOrderID := c.PostForm("razorpay_order_id")
	paymentID := c.PostForm("razorpay_payment_id")
	signature := c.PostForm("razorpay_signature")

	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		h.logger.Warn("Callback missing payment fields",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.String("error_code", c.PostForm("error[code]")))
		h.redirectError(c, callbackPaymentFailed)
		return
	}

	if !h.deps.Payments.Configured() {
		h.logger.Error("Gateway credentials missing")
		h.redirectError(c, callbackServerError)
		return
	}

	if !h.deps.Payments.VerifyPaymentSignature(gatewayOrderID, paymentID, signature) {
		util.SignatureFailuresTotal.WithLabelValues("callback").Inc()
		h.logger.Warn("Invalid callback signature", zap.String("gateway_order_id", gatewayOrderID))
		h.redirectError(c, callbackInvalidSignature)
		return
	}

	ctx := c.Request.Context()
	gwOrder, err := h.deps.Payments.FetchGatewayOrder(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			h.redirectError(c, callbackOrderNotFound)
			return
		}
		h.logger.Error("Failed to fetch gateway order",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.Error(err))
		h.redirectError(c, callbackServerError)
		return
	}

	orderID := internalOrderID(gwOrder)
	if orderID == "" {
		h.redirectError(c, callbackOrderNotFound)
		return
	}

	result := h.deps.Payments.ProcessPayment(ctx, orderID, paymentID, gwOrder.Amount)
	switch result.Kind {
	case service.ResultPaid, service.ResultAlreadyPaid:
		c.Redirect(http.StatusSeeOther, fmt.Sprintf("%s/order-confirmation/%s", h.cfg.SiteURL, url.PathEscape(orderID)))
	case service.ResultNotFound:
		h.redirectError(c, callbackOrderNotFound)
	case service.ResultFailed:
		h.redirectError(c, callbackDBError)
	default:
		h.redirectError(c, callbackPaymentFailed)
	}
}

func (h *Handler) redirectError(c *gin.Context, code string) {
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("%s/checkout?error=%s", h.cfg.SiteURL, url.QueryEscape(code)))
}

// internalOrderID recovers our order id from a gateway order. Gateway orders
// created by other integrations carry foreign receipts, which yield "".
func internalOrderID(o *gateway.Order) string {
	if isOrderID(o.Receipt) {
		return o.Receipt
	}
	return orderIDFromNotes(o.Notes)
}

func orderIDFromNotes(notes gateway.Notes) string {
	if id := notes["order_id"]; isOrderID(id) {
		return id
	}
	return ""
}

func isOrderID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// paymentWebhook handles server-to-server payment notifications. Any non-2xx
// response makes the gateway redeliver, so only transient failures return one.
func (h *Handler) paymentWebhook(c *gin.Context) {
	if h.cfg.WebhookSecret == "" {
		h.logger.Error("Webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgConfigError})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body"})
		return
	}

	if !gateway.VerifyWebhookSignature(body, c.GetHeader(headerWebhookSignature), h.cfg.WebhookSecret) {
		util.SignatureFailuresTotal.WithLabelValues("webhook").Inc()
		h.logger.Warn("Invalid webhook signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	ctx := c.Request.Context()
	dedupeKey := ""
	if eventID := c.GetHeader(headerWebhookEventID); eventID != "" && h.deps.Dedupe != nil {
		dedupeKey = "webhook:" + eventID
		first, err := h.deps.Dedupe.MarkOnce(ctx, dedupeKey, h.cfg.WebhookDedupeTTL)
		if err != nil {
			h.logger.Warn("Webhook dedupe unavailable", zap.String("event_id", eventID), zap.Error(err))
			dedupeKey = ""
		} else if !first {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	status, outcome := h.handleWebhookEvent(ctx, &event)
	if status >= http.StatusInternalServerError && dedupeKey != "" {
		if err := h.deps.Dedupe.ForgetOnce(ctx, dedupeKey); err != nil {
			h.logger.Warn("Failed to release webhook dedupe key", zap.String("key", dedupeKey), zap.Error(err))
		}
	}

	c.JSON(status, gin.H{"status": outcome})
}

func (h *Handler) handleWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) (int, string) {
	if event.Event != gateway.EventOrderPaid && event.Event != gateway.EventPaymentCaptured {
		return http.StatusOK, "ignored"
	}
	if event.Payload.Payment == nil {
		return http.StatusOK, "ignored"
	}
	payment := event.Payload.Payment.Entity

	orderID := orderIDFromNotes(payment.Notes)
	if event.Payload.Order != nil {
		if id := internalOrderID(&event.Payload.Order.Entity); id != "" {
			orderID = id
		}
	}
	if orderID == "" && payment.OrderID != "" {
		gwOrder, err := h.deps.Payments.FetchGatewayOrder(ctx, payment.OrderID)
		if err != nil {
			if errors.Is(err, gateway.ErrNotFound) {
				return http.StatusOK, "order_not_found"
			}
			h.logger.Error("Failed to resolve webhook order",
				zap.String("gateway_order_id", payment.OrderID),
				zap.Error(err))
			return http.StatusInternalServerError, "retry"
		}
		orderID = internalOrderID(gwOrder)
	}
	if orderID == "" {
		h.logger.Warn("Webhook payment has no order reference", zap.String("payment_id", payment.ID))
		return http.StatusOK, "order_not_found"
	}

	result := h.deps.Payments.ProcessPayment(ctx, orderID, payment.ID, payment.Amount)
	if result.Kind == service.ResultFailed {
		return http.StatusInternalServerError, "retry"
	}
	return http.StatusOK, result.Kind.String()
}
