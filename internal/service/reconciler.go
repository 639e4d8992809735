package service

import (
	"context"
	"fmt"
	"time"

	"payment-service/internal/gateway"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

const componentReconcile = "reconcile"

// Reconcile actions reported per order
const (
	ActionRecovered      = "recovered"
	ActionAlreadyPaid    = "already_paid"
	ActionNoGatewayOrder = "no_gateway_order"
	ActionStillPending   = "still_pending"
	ActionFailed         = "failed"
)

// StuckOrderLister finds pending orders old enough to reconcile
type StuckOrderLister interface {
	ListStuckOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

// PaymentFinalizer is the part of PaymentProcessor the sweep drives
type PaymentFinalizer interface {
	FindGatewayOrderByReceipt(ctx context.Context, receipt string) (*gateway.Order, error)
	GetPaymentsForOrder(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error)
	ProcessPayment(ctx context.Context, orderID, paymentID string, amountMinor int64) FinalizeResult
}

// ReconcileDetail describes what happened to one order
type ReconcileDetail struct {
	OrderID   string `json:"order_id"`
	Action    string `json:"action"`
	PaymentID string `json:"payment_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ReconcileSummary is the result of one sweep
type ReconcileSummary struct {
	Scanned   int               `json:"scanned"`
	Recovered int               `json:"recovered"`
	Failed    int               `json:"failed"`
	Details   []ReconcileDetail `json:"details"`
}

// ReconcileConfig bounds a sweep
type ReconcileConfig struct {
	GracePeriod time.Duration
	BatchSize   int
}

// Reconciler recovers orders whose payment succeeded at the gateway but never
// reached the finalize step.
type Reconciler struct {
	orders    StuckOrderLister
	finalizer PaymentFinalizer
	syslog    *SystemLogger
	cfg       ReconcileConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(orders StuckOrderLister, finalizer PaymentFinalizer, syslog *SystemLogger, cfg ReconcileConfig) *Reconciler {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reconciler{
		orders:    orders,
		finalizer: finalizer,
		syslog:    syslog,
		cfg:       cfg,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// Run sweeps one batch of stuck orders. Orders are handled one at a time and a
// failure on one never stops the rest.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileSummary, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.Run")
	defer span.End()

	util.ReconcileRunsTotal.Inc()

	cutoff := r.now().Add(-r.cfg.GracePeriod)
	orders, err := r.orders.ListStuckOrders(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		r.syslog.Error(ctx, componentReconcile, "Failed to list stuck orders", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("failed to list stuck orders: %w", err)
	}

	summary := &ReconcileSummary{
		Scanned: len(orders),
		Details: make([]ReconcileDetail, 0, len(orders)),
	}

	for i := range orders {
		if ctx.Err() != nil {
			break
		}
		detail := r.reconcileOrder(ctx, &orders[i])
		switch detail.Action {
		case ActionRecovered:
			summary.Recovered++
		case ActionFailed:
			summary.Failed++
			r.syslog.Error(ctx, componentReconcile, "Failed to reconcile order", map[string]interface{}{
				"order_id": detail.OrderID,
				"error":    detail.Error,
			})
		}
		util.ReconcileOrdersTotal.WithLabelValues(detail.Action).Inc()
		summary.Details = append(summary.Details, detail)
	}

	r.logger.Info("Reconciliation finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("recovered", summary.Recovered),
		zap.Int("failed", summary.Failed))
	r.syslog.Info(ctx, componentReconcile, "Reconciliation finished", map[string]interface{}{
		"scanned":   summary.Scanned,
		"recovered": summary.Recovered,
		"failed":    summary.Failed,
	})

	return summary, nil
}

func (r *Reconciler) reconcileOrder(ctx context.Context, order *models.Order) ReconcileDetail {
	detail := ReconcileDetail{OrderID: order.ID}

	gwOrder, err := r.finalizer.FindGatewayOrderByReceipt(ctx, order.ID)
	if err != nil {
		detail.Action = ActionFailed
		detail.Error = err.Error()
		return detail
	}
	if gwOrder == nil {
		detail.Action = ActionNoGatewayOrder
		return detail
	}
	if gwOrder.Status != gateway.OrderStatusPaid {
		detail.Action = ActionStillPending
		return detail
	}

	payments, err := r.finalizer.GetPaymentsForOrder(ctx, gwOrder.ID)
	if err != nil {
		detail.Action = ActionFailed
		detail.Error = err.Error()
		return detail
	}

	var captured *gateway.Payment
	for i := range payments {
		if payments[i].IsCaptured() {
			captured = &payments[i]
			break
		}
	}
	if captured == nil {
		detail.Action = ActionFailed
		detail.Error = fmt.Sprintf("gateway order %s is paid but has no captured payment", gwOrder.ID)
		return detail
	}
	detail.PaymentID = captured.ID

	result := r.finalizer.ProcessPayment(ctx, order.ID, captured.ID, captured.Amount)
	switch result.Kind {
	case ResultPaid:
		detail.Action = ActionRecovered
		r.logger.Info("Recovered stuck order",
			zap.String("order_id", order.ID),
			zap.String("payment_id", captured.ID))
	case ResultAlreadyPaid:
		detail.Action = ActionAlreadyPaid
	default:
		detail.Action = ActionFailed
		if result.Err != nil {
			detail.Error = fmt.Sprintf("%s: %v", result.Kind, result.Err)
		} else {
			detail.Error = result.Kind.String()
		}
	}
	return detail
}
