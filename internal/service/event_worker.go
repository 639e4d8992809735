package service

import (
	"context"
	"fmt"

	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// EventQueue is the worker's view of app_events
type EventQueue interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]models.AppEvent, error)
	ClaimEvent(ctx context.Context, id int64) (bool, error)
	CompleteEvent(ctx context.Context, id int64) error
	FailEvent(ctx context.Context, id int64, reason string) error
}

// EventHandler processes one event. A returned error marks it FAILED.
type EventHandler func(ctx context.Context, event *models.AppEvent) error

// EventResult reports the outcome of one processed event
type EventResult struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EventWorker drains PENDING events through registered handlers
type EventWorker struct {
	queue     EventQueue
	handlers  map[string]EventHandler
	batchSize int
	logger    *zap.Logger
}

// NewEventWorker creates a new event worker
func NewEventWorker(queue EventQueue, batchSize int) *EventWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &EventWorker{
		queue:     queue,
		handlers:  make(map[string]EventHandler),
		batchSize: batchSize,
		logger:    util.GetLogger(),
	}
}

// Register sets the handler for an event type
func (w *EventWorker) Register(eventType string, handler EventHandler) {
	w.handlers[eventType] = handler
}

// ProcessPending handles up to one batch of PENDING events, oldest first.
// Events claimed by another worker in the meantime are skipped.
func (w *EventWorker) ProcessPending(ctx context.Context) ([]EventResult, error) {
	ctx, span := util.StartSpan(ctx, "EventWorker.ProcessPending")
	defer span.End()

	events, err := w.queue.FetchPendingEvents(ctx, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}

	results := make([]EventResult, 0, len(events))
	for i := range events {
		event := &events[i]

		claimed, err := w.queue.ClaimEvent(ctx, event.ID)
		if err != nil {
			w.logger.Error("Failed to claim event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		results = append(results, w.process(ctx, event))
	}

	return results, nil
}

func (w *EventWorker) process(ctx context.Context, event *models.AppEvent) EventResult {
	result := EventResult{ID: event.ID, Type: event.Type}

	err := w.dispatch(ctx, event)
	if err == nil {
		err = w.queue.CompleteEvent(ctx, event.ID)
		if err != nil {
			err = fmt.Errorf("failed to mark event completed: %w", err)
		}
	} else if failErr := w.queue.FailEvent(ctx, event.ID, err.Error()); failErr != nil {
		w.logger.Error("Failed to mark event failed", zap.Int64("event_id", event.ID), zap.Error(failErr))
	}

	if err != nil {
		result.Error = err.Error()
		util.EventsProcessedTotal.WithLabelValues(event.Type, models.EventStatusFailed).Inc()
		w.logger.Warn("Event failed",
			zap.Int64("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err))
		return result
	}

	result.Success = true
	util.EventsProcessedTotal.WithLabelValues(event.Type, models.EventStatusCompleted).Inc()
	w.logger.Info("Event processed", zap.Int64("event_id", event.ID), zap.String("type", event.Type))
	return result
}

func (w *EventWorker) dispatch(ctx context.Context, event *models.AppEvent) (err error) {
	handler, ok := w.handlers[event.Type]
	if !ok {
		return fmt.Errorf("no handler registered for event type %s", event.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
