package gateway

import (
	"bytes"
	"encoding/json"
)

// Gateway order statuses
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// Gateway payment statuses
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusFailed     = "failed"
)

// Webhook event names handled by the service
const (
	EventOrderPaid       = "order.paid"
	EventPaymentCaptured = "payment.captured"
)

// Notes is the free-form key/value map attached to gateway entities. The API
// encodes an empty map as [].
type Notes map[string]string

func (n *Notes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("null")) {
		*n = Notes{}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	*n = m
	return nil
}

// Order is the gateway's order entity
type Order struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	Notes      Notes  `json:"notes"`
	CreatedAt  int64  `json:"created_at"`
}

// Payment is the gateway's payment entity
type Payment struct {
	ID               string  `json:"id"`
	Entity           string  `json:"entity"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	OrderID          string  `json:"order_id"`
	Method           string  `json:"method"`
	Captured         bool    `json:"captured"`
	Email            string  `json:"email"`
	Contact          string  `json:"contact"`
	Notes            Notes   `json:"notes"`
	ErrorCode        *string `json:"error_code"`
	ErrorDescription *string `json:"error_description"`
	CreatedAt        int64   `json:"created_at"`
}

// IsCaptured reports whether the payment has been captured
func (p *Payment) IsCaptured() bool {
	return p.Status == PaymentStatusCaptured
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Notes    Notes  `json:"notes,omitempty"`
}

type collection[T any] struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
	Items  []T    `json:"items"`
}

// WebhookEvent is a server-to-server notification
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	Contains  []string       `json:"contains"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

type WebhookPayload struct {
	Payment *PaymentEnvelope `json:"payment,omitempty"`
	Order   *OrderEnvelope   `json:"order,omitempty"`
}

type PaymentEnvelope struct {
	Entity Payment `json:"entity"`
}

type OrderEnvelope struct {
	Entity Order `json:"entity"`
}
