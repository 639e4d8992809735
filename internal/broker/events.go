package broker

import (
	"context"
	"fmt"
	"time"

	"payment-service/internal/models"

	"github.com/google/uuid"
)

// RelayedEvent is the envelope written to the order events topic
type RelayedEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventPublisher relays committed domain events to downstream consumers
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPaid publishes an ORDER_PAID event keyed by order
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, RelayedEvent{
		EventID:   uuid.New().String(),
		EventType: models.EventTypeOrderPaid,
		Timestamp: time.Now().UTC(),
		Data:      event,
	})
}
