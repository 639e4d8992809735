package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/service"
	"payment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PaymentIntentCreator opens gateway orders for checkout
type PaymentIntentCreator interface {
	CreatePaymentIntent(ctx context.Context, orderID string) (*gateway.Order, error)
}

// PaymentFinalizer verifies gateway callbacks and finalizes orders
type PaymentFinalizer interface {
	Configured() bool
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
	FetchGatewayOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error)
	ProcessPayment(ctx context.Context, orderID, paymentID string, amountMinor int64) service.FinalizeResult
}

// ReconcileRunner runs one reconciliation sweep
type ReconcileRunner interface {
	Run(ctx context.Context) (*service.ReconcileSummary, error)
}

// EventProcessor drains the event queue
type EventProcessor interface {
	ProcessPending(ctx context.Context) ([]service.EventResult, error)
}

// DeliveryDeduper remembers webhook deliveries already handled
type DeliveryDeduper interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ForgetOnce(ctx context.Context, key string) error
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds settings the handlers need
type Config struct {
	SiteURL          string
	WebhookSecret    string
	CronSecret       string
	Development      bool
	WebhookDedupeTTL time.Duration
}

// Dependencies groups the services behind the HTTP API
type Dependencies struct {
	Checkout   PaymentIntentCreator
	Payments   PaymentFinalizer
	Reconciler ReconcileRunner
	Events     EventProcessor
	Dedupe     DeliveryDeduper
	Checks     map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies, cfg Config) *Handler {
	if cfg.WebhookDedupeTTL <= 0 {
		cfg.WebhookDedupeTTL = 24 * time.Hour
	}
	return &Handler{
		deps:   deps,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	payments := router.Group("/api/payments")
	{
		payments.POST("/create-order", h.createOrder)
		payments.POST("/verify", h.verifyPayment)
		payments.POST("/callback", h.paymentCallback)
		payments.POST("/webhook", h.paymentWebhook)
	}

	router.GET("/api/cron/reconcile-payments", h.reconcilePayments)
	router.GET("/api/worker/events", h.processEvents)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := gin.H{}
	for name, dep := range h.deps.Checks {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failing[name] = "unavailable"
		}
	}

	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "not_ready",
			"dependencies": failing,
			"time":         time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
