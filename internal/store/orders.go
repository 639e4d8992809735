package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/models"
)

const orderColumns = `id, user_id, total_amount, status, payment_id, gateway_order_id, paid_at,
	shipping_name, shipping_email, shipping_phone, shipping_address, created_at, updated_at`

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, order_id, product_id, product_name, unit_price, quantity, size, color
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return items, err
}

// SetGatewayOrderID records the gateway order created for a pending order
func (s *Store) SetGatewayOrderID(ctx context.Context, orderID, gatewayOrderID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET gateway_order_id = $1, updated_at = NOW() WHERE id = $2",
		gatewayOrderID, orderID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// ListStuckOrders returns pending orders created before the cutoff, oldest first
func (s *Store) ListStuckOrders(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT "+orderColumns+` FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`,
		models.OrderStatusPending, createdBefore, limit)
	return orders, err
}

// FinalizeOrderPayment runs finalize_order_payment, which locks the order,
// checks the authorized amount, decrements stock for every line item and marks
// the order paid in a single server-side transaction.
func (s *Store) FinalizeOrderPayment(ctx context.Context, orderID, paymentID string, amountMinor int64) (*models.FinalizeOutcome, error) {
	var outcome models.FinalizeOutcome
	err := s.db.GetContext(ctx, &outcome,
		"SELECT outcome, product_name, total_amount FROM finalize_order_payment($1, $2, $3)",
		orderID, paymentID, amountMinor)
	if err != nil {
		return nil, fmt.Errorf("finalize_order_payment: %w", err)
	}
	return &outcome, nil
}
