package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/store"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const componentPayment = "payment"

// PaymentStore is the persistence needed to finalize payments
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	FinalizeOrderPayment(ctx context.Context, orderID, paymentID string, amountMinor int64) (*models.FinalizeOutcome, error)
}

// GatewayClient is the subset of the gateway API the service calls
type GatewayClient interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error)
	FetchOrder(ctx context.Context, id string) (*gateway.Order, error)
	FindOrderByReceipt(ctx context.Context, receipt string) (*gateway.Order, error)
	ListOrderPayments(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error)
}

// EventPublisher enqueues domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) (int64, error)
}

// PaymentProcessor verifies gateway callbacks and finalizes paid orders
type PaymentProcessor struct {
	store     PaymentStore
	gateway   GatewayClient
	events    EventPublisher
	syslog    *SystemLogger
	keySecret string
	logger    *zap.Logger
}

// NewPaymentProcessor creates a new payment processor
func NewPaymentProcessor(
	store PaymentStore,
	gw GatewayClient,
	events EventPublisher,
	syslog *SystemLogger,
	keySecret string,
) *PaymentProcessor {
	return &PaymentProcessor{
		store:     store,
		gateway:   gw,
		events:    events,
		syslog:    syslog,
		keySecret: keySecret,
		logger:    util.GetLogger(),
	}
}

// Configured reports whether checkout signatures can be verified
func (p *PaymentProcessor) Configured() bool {
	return p.keySecret != ""
}

// VerifyPaymentSignature checks the signature the gateway attached to a
// checkout callback.
func (p *PaymentProcessor) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	return gateway.VerifyPaymentSignature(gatewayOrderID, paymentID, signature, p.keySecret)
}

// FetchGatewayOrder loads a gateway order by its gateway id
func (p *PaymentProcessor) FetchGatewayOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentProcessor.FetchGatewayOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("fetch_order").Observe(time.Since(start).Seconds())
	}()

	return p.gateway.FetchOrder(ctx, gatewayOrderID)
}

// FindGatewayOrderByReceipt returns the gateway order created for receipt, or
// nil when the gateway has none. Transport and auth errors are returned.
func (p *PaymentProcessor) FindGatewayOrderByReceipt(ctx context.Context, receipt string) (*gateway.Order, error) {
	ctx, span := util.StartSpan(ctx, "PaymentProcessor.FindGatewayOrderByReceipt")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("find_order").Observe(time.Since(start).Seconds())
	}()

	order, err := p.gateway.FindOrderByReceipt(ctx, receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to look up gateway order: %w", err)
	}
	return order, nil
}

// GetPaymentsForOrder lists the payments attempted against a gateway order
func (p *PaymentProcessor) GetPaymentsForOrder(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentProcessor.GetPaymentsForOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.WithLabelValues("list_payments").Observe(time.Since(start).Seconds())
	}()

	payments, err := p.gateway.ListOrderPayments(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway payments: %w", err)
	}
	return payments, nil
}

// ProcessPayment marks an order paid and decrements stock in one database
// transaction. amountMinor is the amount the gateway authorized and must equal
// the order total. Safe to call repeatedly and concurrently for one order.
func (p *PaymentProcessor) ProcessPayment(ctx context.Context, orderID, paymentID string, amountMinor int64) FinalizeResult {
	ctx, span := util.StartSpan(ctx, "PaymentProcessor.ProcessPayment")
	defer span.End()

	result := p.finalize(ctx, orderID, paymentID, amountMinor)
	util.FinalizeOutcomesTotal.WithLabelValues(result.Kind.String()).Inc()

	meta := map[string]interface{}{
		"order_id":   orderID,
		"payment_id": paymentID,
		"outcome":    result.Kind.String(),
	}

	switch result.Kind {
	case ResultPaid:
		p.logger.Info("Order paid",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID))
		p.syslog.Info(ctx, componentPayment, "Order paid", meta)
		p.publishOrderPaid(ctx, orderID, paymentID, amountMinor)
	case ResultAlreadyPaid:
		p.logger.Info("Order already paid",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID))
	case ResultFailed:
		p.logger.Error("Failed to finalize payment",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
			zap.Error(result.Err))
		meta["error"] = errString(result.Err)
		p.syslog.Error(ctx, componentPayment, "Failed to finalize payment", meta)
	default:
		p.logger.Warn("Payment not finalized",
			zap.String("order_id", orderID),
			zap.String("payment_id", paymentID),
			zap.String("outcome", result.Kind.String()),
			zap.String("product", result.ProductName))
		if result.ProductName != "" {
			meta["product_name"] = result.ProductName
		}
		p.syslog.Warn(ctx, componentPayment, "Payment not finalized", meta)
	}

	return result
}

func (p *PaymentProcessor) finalize(ctx context.Context, orderID, paymentID string, amountMinor int64) FinalizeResult {
	result := FinalizeResult{OrderID: orderID, PaymentID: paymentID}

	if orderID == "" || paymentID == "" {
		result.Err = errors.New("order id and payment id are required")
		return result
	}
	// foreign gateway receipts never name one of our orders
	if _, err := uuid.Parse(orderID); err != nil {
		result.Kind = ResultNotFound
		return result
	}

	order, err := p.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			result.Kind = ResultNotFound
			return result
		}
		result.Err = fmt.Errorf("failed to load order: %w", err)
		return result
	}
	if order.Status == models.OrderStatusPaid {
		result.Kind = ResultAlreadyPaid
		return result
	}

	start := time.Now()
	outcome, err := p.store.FinalizeOrderPayment(ctx, orderID, paymentID, amountMinor)
	util.FinalizeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		result.Err = fmt.Errorf("finalize transaction: %w", err)
		return result
	}

	if outcome.ProductName != nil {
		result.ProductName = *outcome.ProductName
	}

	switch outcome.Status {
	case models.FinalizePaid:
		result.Kind = ResultPaid
	case models.FinalizeAlreadyPaid:
		result.Kind = ResultAlreadyPaid
	case models.FinalizeStockConflict:
		result.Kind = ResultStockConflict
	case models.FinalizeAmountMismatch:
		result.Kind = ResultAmountMismatch
		result.Err = fmt.Errorf("authorized %s, order total %s",
			models.FromMinorUnits(amountMinor).StringFixed(2), outcome.TotalAmount.Decimal.StringFixed(2))
	case models.FinalizeNotFound:
		result.Kind = ResultNotFound
	case models.FinalizeInvalidStatus:
		result.Kind = ResultInvalidStatus
	default:
		result.Err = fmt.Errorf("unexpected finalize outcome %q", outcome.Status)
	}
	return result
}

func (p *PaymentProcessor) publishOrderPaid(ctx context.Context, orderID, paymentID string, amountMinor int64) {
	if p.events == nil {
		return
	}
	event := models.OrderPaidEvent{OrderID: orderID, PaymentID: paymentID, Amount: amountMinor}
	if _, err := p.events.Publish(ctx, models.EventTypeOrderPaid, event); err != nil {
		p.logger.Error("Failed to publish ORDER_PAID event",
			zap.String("order_id", orderID),
			zap.Error(err))
		p.syslog.Error(ctx, componentPayment, "Failed to publish ORDER_PAID event", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
