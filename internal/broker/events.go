package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"dealer-portal/internal/models"
	"dealer-portal/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RawPublisher writes encoded events to the broker.
type RawPublisher interface {
	PublishRaw(ctx context.Context, key string, value []byte) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer RawPublisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer RawPublisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOutboxEvent publishes the stored payload of an outbox event, keyed
// by order id so that events of one order stay in order.
func (ep *EventPublisher) PublishOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error {
	if len(ev.Payload) == 0 {
		return fmt.Errorf("outbox event %s has no payload", ev.EventID)
	}
	return ep.producer.PublishRaw(ctx, ev.AggregateID, ev.Payload)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderEvent func(context.Context, *models.OrderEvent) error
	logger       *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderEvent registers a handler for order lifecycle events
func (eh *EventHandler) OnOrderEvent(handler func(context.Context, *models.OrderEvent) error) {
	eh.onOrderEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		// Poison messages are logged and committed.
		eh.logger.Error("Dropping undecodable message", zap.ByteString("key", msg.Key), zap.Error(err))
		return nil
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced,
		models.EventTypeOrderAccepted,
		models.EventTypeOrderRejected,
		models.EventTypeOrderStatusUpdated:
		if eh.onOrderEvent != nil {
			var event models.OrderEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onOrderEvent(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
