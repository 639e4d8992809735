package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"payment-service/internal/mailer"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// OrderReader loads an order with its line items
type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

// Mailer sends a single email
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) (string, error)
}

// OrderPaidRelay forwards ORDER_PAID to downstream consumers
type OrderPaidRelay interface {
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
}

// NotifierConfig holds addresses used in notifications
type NotifierConfig struct {
	AdminEmail string
	SiteURL    string
	Currency   string
}

// OrderPaidNotifier handles ORDER_PAID events
type OrderPaidNotifier struct {
	orders OrderReader
	mail   Mailer
	relay  OrderPaidRelay
	cfg    NotifierConfig
	logger *zap.Logger
}

// NewOrderPaidNotifier creates a notifier. relay may be nil.
func NewOrderPaidNotifier(orders OrderReader, mail Mailer, relay OrderPaidRelay, cfg NotifierConfig) *OrderPaidNotifier {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &OrderPaidNotifier{
		orders: orders,
		mail:   mail,
		relay:  relay,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// Handle sends the customer confirmation. The admin notice and Kafka relay
// are best-effort.
func (n *OrderPaidNotifier) Handle(ctx context.Context, event *models.AppEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderPaidNotifier.Handle")
	defer span.End()

	var payload models.OrderPaidEvent
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid ORDER_PAID payload: %w", err)
	}
	if payload.OrderID == "" {
		return errors.New("ORDER_PAID payload has no order_id")
	}

	order, err := n.orders.GetOrderByID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", payload.OrderID, err)
	}
	items, err := n.orders.GetOrderItems(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load items for order %s: %w", payload.OrderID, err)
	}

	if order.ShippingEmail == "" {
		return fmt.Errorf("order %s has no customer email", order.ID)
	}

	_, err = n.mail.Send(ctx, mailer.Message{
		To:      []string{order.ShippingEmail},
		Subject: fmt.Sprintf("Order confirmed #%s", shortID(order.ID)),
		Text:    n.customerBody(order, items),
	})
	if err != nil {
		util.EmailsSentTotal.WithLabelValues("customer", "error").Inc()
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	util.EmailsSentTotal.WithLabelValues("customer", "ok").Inc()

	if n.cfg.AdminEmail != "" {
		_, err := n.mail.Send(ctx, mailer.Message{
			To:      []string{n.cfg.AdminEmail},
			Subject: fmt.Sprintf("New paid order #%s", shortID(order.ID)),
			Text:    n.adminBody(order, items, payload.PaymentID),
		})
		if err != nil {
			util.EmailsSentTotal.WithLabelValues("admin", "error").Inc()
			n.logger.Warn("Failed to send admin notification",
				zap.String("order_id", order.ID),
				zap.Error(err))
		} else {
			util.EmailsSentTotal.WithLabelValues("admin", "ok").Inc()
		}
	}

	if n.relay != nil {
		if err := n.relay.PublishOrderPaid(ctx, &payload); err != nil {
			n.logger.Warn("Failed to relay ORDER_PAID",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	return nil
}

func (n *OrderPaidNotifier) customerBody(order *models.Order, items []models.OrderItem) string {
	var b strings.Builder
	name := order.ShippingName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Thank you for your order. Your payment has been received and order #%s is confirmed.\n\n", shortID(order.ID))
	n.writeItems(&b, items)
	fmt.Fprintf(&b, "\nTotal: %s %s\n", n.cfg.Currency, order.TotalAmount.StringFixed(2))
	if n.cfg.SiteURL != "" {
		fmt.Fprintf(&b, "\nView your order: %s/order-confirmation/%s\n", n.cfg.SiteURL, order.ID)
	}
	b.WriteString("\nWe will let you know when it ships.\n")
	return b.String()
}

func (n *OrderPaidNotifier) adminBody(order *models.Order, items []models.OrderItem, paymentID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order: %s\n", order.ID)
	fmt.Fprintf(&b, "Payment: %s\n", paymentID)
	fmt.Fprintf(&b, "Customer: %s <%s> %s\n", order.ShippingName, order.ShippingEmail, order.ShippingPhone)
	if len(order.ShippingAddress) > 0 {
		fmt.Fprintf(&b, "Ship to: %s\n", string(order.ShippingAddress))
	}
	b.WriteString("\n")
	n.writeItems(&b, items)
	fmt.Fprintf(&b, "\nTotal: %s %s\n", n.cfg.Currency, order.TotalAmount.StringFixed(2))
	return b.String()
}

func (n *OrderPaidNotifier) writeItems(b *strings.Builder, items []models.OrderItem) {
	for _, item := range items {
		variant := strings.TrimSpace(strings.Join([]string{item.Size, item.Color}, " "))
		if variant != "" {
			variant = " (" + variant + ")"
		}
		fmt.Fprintf(b, "- %s%s x%d  %s %s\n", item.ProductName, variant, item.Quantity, n.cfg.Currency, item.UnitPrice.StringFixed(2))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
