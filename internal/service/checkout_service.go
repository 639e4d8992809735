package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/redisclient"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutStore is the persistence needed to open a payment intent
type CheckoutStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error
}

// RateLimiter counts requests in fixed windows
type RateLimiter interface {
	AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (*redisclient.RateLimitResult, error)
}

// CheckoutConfig holds payment intent limits
type CheckoutConfig struct {
	Currency    string
	IntentLimit int
	Window      time.Duration
}

// CheckoutService opens gateway payment intents for pending orders
type CheckoutService struct {
	store   CheckoutStore
	gateway GatewayClient
	limiter RateLimiter
	cfg     CheckoutConfig
	logger  *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store CheckoutStore, gw GatewayClient, limiter RateLimiter, cfg CheckoutConfig) *CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &CheckoutService{
		store:   store,
		gateway: gw,
		limiter: limiter,
		cfg:     cfg,
		logger:  util.GetLogger(),
	}
}

// CreatePaymentIntent creates a gateway order for a pending order after
// checking that every item is still sellable.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, orderID string) (*gateway.Order, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreatePaymentIntent")
	defer span.End()

	if _, err := uuid.Parse(orderID); err != nil {
		util.PaymentIntentsRejectedTotal.WithLabelValues("invalid_id").Inc()
		return nil, ErrInvalidOrderID
	}

	if err := s.checkRateLimit(ctx, orderID); err != nil {
		return nil, err
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.PaymentIntentsRejectedTotal.WithLabelValues("not_found").Inc()
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.OrderStatusPending {
		util.PaymentIntentsRejectedTotal.WithLabelValues("not_pending").Inc()
		return nil, ErrOrderNotPending
	}

	if err := s.ensureProductsAvailable(ctx, orderID); err != nil {
		return nil, err
	}

	start := time.Now()
	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   order.AmountMinor(),
		Currency: s.cfg.Currency,
		Receipt:  order.ID,
		Notes:    gateway.Notes{"order_id": order.ID},
	})
	util.GatewayRequestLatency.WithLabelValues("create_order").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	if err := s.store.SetGatewayOrderID(ctx, order.ID, gwOrder.ID); err != nil {
		// The receipt still links the gateway order back, so reconciliation
		// can find it even if this write is lost.
		s.logger.Error("Failed to store gateway order id",
			zap.String("order_id", order.ID),
			zap.String("gateway_order_id", gwOrder.ID),
			zap.Error(err))
	}

	util.PaymentIntentsCreatedTotal.Inc()
	s.logger.Info("Payment intent created",
		zap.String("order_id", order.ID),
		zap.String("gateway_order_id", gwOrder.ID),
		zap.Int64("amount", gwOrder.Amount))

	return gwOrder, nil
}

func (s *CheckoutService) checkRateLimit(ctx context.Context, orderID string) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.AllowFixedWindow(ctx, "payment-intent:"+orderID, s.cfg.IntentLimit, s.cfg.Window)
	if err != nil {
		s.logger.Warn("Rate limiter unavailable, allowing request",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil
	}
	if !res.Allowed {
		util.PaymentIntentsRejectedTotal.WithLabelValues("rate_limited").Inc()
		return &RateLimitError{RetryAfter: res.RetryAfter}
	}
	return nil
}

func (s *CheckoutService) ensureProductsAvailable(ctx context.Context, orderID string) error {
	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok || !product.Available() {
			util.PaymentIntentsRejectedTotal.WithLabelValues("product_unavailable").Inc()
			return &ProductUnavailableError{ProductName: item.ProductName}
		}
	}
	return nil
}
