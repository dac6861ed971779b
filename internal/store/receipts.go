package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sweet-shop/internal/models"
)

// ErrReceiptNotFound is returned when no receipt matches
var ErrReceiptNotFound = errors.New("receipt not found")

// RecordReceipt inserts a receipt with its lines and marks the source event
// processed, all in one transaction.
func (s *Store) RecordReceipt(ctx context.Context, receipt *models.Receipt, lines []models.ReceiptLine, eventType string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO receipts (id, event_id, session_id, username, status, total_amount, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err = tx.GetContext(ctx, &receipt.CreatedAt, query,
		receipt.ID, receipt.EventID, receipt.SessionID, receipt.Username,
		receipt.Status, receipt.TotalAmount, receipt.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	for i := range lines {
		lines[i].ReceiptID = receipt.ID
		err = tx.GetContext(ctx, &lines[i].ID, `
			INSERT INTO receipt_lines (receipt_id, product_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			lines[i].ReceiptID, lines[i].ProductID, lines[i].Name, lines[i].Quantity, lines[i].UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert receipt line: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		receipt.EventID, eventType)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	return tx.Commit()
}

// GetReceiptByID retrieves a receipt by ID
func (s *Store) GetReceiptByID(ctx context.Context, id string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := s.db.GetContext(ctx, &receipt, "SELECT * FROM receipts WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetReceiptsBySessionID retrieves the receipts of a browser session, newest first
func (s *Store) GetReceiptsBySessionID(ctx context.Context, sessionID string, limit int) ([]models.Receipt, error) {
	receipts := []models.Receipt{}
	err := s.db.SelectContext(ctx, &receipts,
		"SELECT * FROM receipts WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2",
		sessionID, limit)
	return receipts, err
}

// GetReceiptLines retrieves all lines of a receipt
func (s *Store) GetReceiptLines(ctx context.Context, receiptID string) ([]models.ReceiptLine, error) {
	lines := []models.ReceiptLine{}
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM receipt_lines WHERE receipt_id = $1 ORDER BY id", receiptID)
	return lines, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}
