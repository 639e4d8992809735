package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Product is the catalog entry referenced by order items.
type Product struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	DeletedAt *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Available reports whether the product can still be sold.
func (p *Product) Available() bool {
	return p.IsActive && p.DeletedAt == nil
}

// Order is one checkout attempt. The shipping fields are a snapshot taken at
// checkout and are never rewritten.
type Order struct {
	ID              string          `db:"id" json:"id"`
	UserID          *string         `db:"user_id" json:"user_id,omitempty"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status          string          `db:"status" json:"status"`
	PaymentID       *string         `db:"payment_id" json:"payment_id,omitempty"`
	GatewayOrderID  *string         `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	ShippingName    string          `db:"shipping_name" json:"shipping_name"`
	ShippingEmail   string          `db:"shipping_email" json:"shipping_email"`
	ShippingPhone   string          `db:"shipping_phone" json:"shipping_phone"`
	ShippingAddress types.JSONText  `db:"shipping_address" json:"shipping_address"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AmountMinor returns the order total in minor currency units (paise).
func (o *Order) AmountMinor() int64 {
	return ToMinorUnits(o.TotalAmount)
}

// OrderItem is a line snapshot taken when the order was created.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"order_id"`
	ProductID   string          `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Size        string          `db:"size" json:"size"`
	Color       string          `db:"color" json:"color"`
}

// AppEvent is a row of the durable event queue.
type AppEvent struct {
	ID          int64          `db:"id" json:"id"`
	Type        string         `db:"type" json:"type"`
	Payload     types.JSONText `db:"payload" json:"payload"`
	Status      string         `db:"status" json:"status"`
	Error       *string        `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	ProcessedAt *time.Time     `db:"processed_at" json:"processed_at,omitempty"`
}

// SystemLog is an append-only diagnostic record.
type SystemLog struct {
	ID        int64          `db:"id" json:"id"`
	Level     string         `db:"level" json:"level"`
	Component string         `db:"component" json:"component"`
	Message   string         `db:"message" json:"message"`
	Metadata  types.JSONText `db:"metadata" json:"metadata"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Event statuses
const (
	EventStatusPending    = "PENDING"
	EventStatusProcessing = "PROCESSING"
	EventStatusCompleted  = "COMPLETED"
	EventStatusFailed     = "FAILED"
)

// Log levels
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to minor units, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a two-decimal amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
