package worker

import (
	"context"
	"fmt"

	"sweet-shop/internal/broker"
	"sweet-shop/internal/models"
	"sweet-shop/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceiptStore is the ledger the worker writes to
type ReceiptStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	RecordReceipt(ctx context.Context, receipt *models.Receipt, lines []models.ReceiptLine, eventType string) error
}

// ReceiptWorker turns purchase events into receipts
type ReceiptWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        ReceiptStore
	logger       *zap.Logger
}

// NewReceiptWorker creates a new receipt worker
func NewReceiptWorker(consumer *broker.Consumer, store ReceiptStore) *ReceiptWorker {
	w := &ReceiptWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnPurchaseCommitted(w.HandlePurchaseCommitted)
	w.eventHandler.OnPurchaseHalted(w.HandlePurchaseHalted)

	return w
}

// Start starts the worker
func (w *ReceiptWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting receipt worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReceiptWorker) Stop() error {
	w.logger.Info("Stopping receipt worker")
	return w.consumer.Close()
}

// HandlePurchaseCommitted records a complete receipt
func (w *ReceiptWorker) HandlePurchaseCommitted(ctx context.Context, event *models.PurchaseCommittedEvent) error {
	receipt := &models.Receipt{
		EventID:     event.EventID,
		SessionID:   event.SessionID,
		Username:    event.Username,
		Status:      models.ReceiptStatusComplete,
		TotalAmount: event.TotalAmount,
	}
	return w.record(ctx, event.EventType, receipt, event.Lines)
}

// HandlePurchaseHalted records the committed prefix of a halted purchase.
// A purchase that halted on its first line has nothing to record.
func (w *ReceiptWorker) HandlePurchaseHalted(ctx context.Context, event *models.PurchaseHaltedEvent) error {
	if len(event.Lines) == 0 {
		w.logger.Info("Purchase halted before any line committed",
			util.SessionField(event.SessionID),
			zap.Int64("failed_product_id", event.FailedProductID),
			zap.String("kind", event.ErrorKind))
		return nil
	}

	receipt := &models.Receipt{
		EventID:     event.EventID,
		SessionID:   event.SessionID,
		Username:    event.Username,
		Status:      models.ReceiptStatusPartial,
		TotalAmount: event.TotalAmount,
		Reason:      event.Reason,
	}
	return w.record(ctx, event.EventType, receipt, event.Lines)
}

func (w *ReceiptWorker) record(ctx context.Context, eventType string, receipt *models.Receipt, data []models.LineData) error {
	ctx, span := util.StartSpan(ctx, "ReceiptWorker.record")
	defer span.End()

	processed, err := w.store.IsEventProcessed(ctx, receipt.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", receipt.EventID))
		return nil
	}

	receipt.ID = uuid.NewString()
	lines := make([]models.ReceiptLine, 0, len(data))
	for _, l := range data {
		lines = append(lines, models.ReceiptLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	if err := w.store.RecordReceipt(ctx, receipt, lines, eventType); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to record receipt: %w", err)
	}

	util.ReceiptsRecordedTotal.WithLabelValues(receipt.Status).Inc()
	w.logger.Info("Receipt recorded",
		zap.String("receipt_id", receipt.ID),
		util.SessionField(receipt.SessionID),
		zap.String("status", receipt.Status),
		zap.String("total", receipt.TotalAmount.StringFixed(2)))
	return nil
}
