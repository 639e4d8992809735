package service

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/internal/util"
)

// EventQueueWriter appends rows to the event queue
type EventQueueWriter interface {
	InsertEvent(ctx context.Context, eventType string, payload []byte) (int64, error)
}

// EventBus publishes domain events to the durable app_events queue
type EventBus struct {
	store EventQueueWriter
}

// NewEventBus creates a new event bus
func NewEventBus(store EventQueueWriter) *EventBus {
	return &EventBus{store: store}
}

// Publish stores a PENDING event and returns its id
func (b *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) (int64, error) {
	ctx, span := util.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	id, err := b.store.InsertEvent(ctx, eventType, raw)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	util.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	return id, nil
}
