package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/models"
	"sweet-shop/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter publishes one keyed event
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing purchase events
type EventPublisher struct {
	writer EventWriter
	now    func() time.Time
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer, now: time.Now}
}

// RecordOutcome publishes PurchaseCommitted when every line went through,
// PurchaseHalted otherwise.
func (ep *EventPublisher) RecordOutcome(ctx context.Context, sid string, s models.Session, outcome models.PurchaseOutcome) error {
	lines := models.LinesData(outcome.CommittedLines)
	base := models.BaseEvent{
		EventID:   uuid.NewString(),
		Timestamp: ep.now().UTC(),
	}

	if outcome.FailedLine == nil && outcome.Err == nil {
		base.EventType = models.EventTypePurchaseCommitted
		return ep.PublishPurchaseCommitted(ctx, &models.PurchaseCommittedEvent{
			BaseEvent:   base,
			SessionID:   sid,
			Username:    s.DisplayName,
			TotalAmount: models.SumLines(lines),
			Lines:       lines,
		})
	}

	base.EventType = models.EventTypePurchaseHalted
	event := &models.PurchaseHaltedEvent{
		BaseEvent:   base,
		SessionID:   sid,
		Username:    s.DisplayName,
		TotalAmount: models.SumLines(lines),
		Lines:       lines,
		ErrorKind:   string(apierr.KindOf(outcome.Err)),
		Reason:      apierr.Message(outcome.Err),
	}
	if outcome.FailedLine != nil {
		event.FailedProductID = outcome.FailedLine.ProductID
	}
	return ep.PublishPurchaseHalted(ctx, event)
}

// PublishPurchaseCommitted publishes PurchaseCommitted event
func (ep *EventPublisher) PublishPurchaseCommitted(ctx context.Context, event *models.PurchaseCommittedEvent) error {
	return ep.writer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

// PublishPurchaseHalted publishes PurchaseHalted event
func (ep *EventPublisher) PublishPurchaseHalted(ctx context.Context, event *models.PurchaseHaltedEvent) error {
	return ep.writer.PublishEvent(ctx, sessionKey(event.SessionID), event)
}

func sessionKey(sid string) string {
	return fmt.Sprintf("session-%s", sid)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPurchaseCommitted func(context.Context, *models.PurchaseCommittedEvent) error
	onPurchaseHalted    func(context.Context, *models.PurchaseHaltedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPurchaseCommitted registers a handler for PurchaseCommitted events
func (eh *EventHandler) OnPurchaseCommitted(handler func(context.Context, *models.PurchaseCommittedEvent) error) {
	eh.onPurchaseCommitted = handler
}

// OnPurchaseHalted registers a handler for PurchaseHalted events
func (eh *EventHandler) OnPurchaseHalted(handler func(context.Context, *models.PurchaseHaltedEvent) error) {
	eh.onPurchaseHalted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePurchaseCommitted:
		if eh.onPurchaseCommitted != nil {
			var event models.PurchaseCommittedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseCommitted event: %w", err)
			}
			return eh.onPurchaseCommitted(ctx, &event)
		}

	case models.EventTypePurchaseHalted:
		if eh.onPurchaseHalted != nil {
			var event models.PurchaseHaltedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseHalted event: %w", err)
			}
			return eh.onPurchaseHalted(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
