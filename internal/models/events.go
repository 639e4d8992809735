package models

// Event types
const (
	EventTypeOrderPaid = "ORDER_PAID"
)

// OrderPaidEvent is the payload stored with an ORDER_PAID event.
type OrderPaidEvent struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}
