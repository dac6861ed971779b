package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypePurchaseCommitted = "PURCHASE_COMMITTED"
	EventTypePurchaseHalted    = "PURCHASE_HALTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCommittedEvent published when every cart line was purchased
type PurchaseCommittedEvent struct {
	BaseEvent
	SessionID   string          `json:"session_id"`
	Username    string          `json:"username,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Lines       []LineData      `json:"lines"`
}

// PurchaseHaltedEvent published when a purchase stopped on its first failure.
// Lines holds the committed prefix, which stays purchased.
type PurchaseHaltedEvent struct {
	BaseEvent
	SessionID       string          `json:"session_id"`
	Username        string          `json:"username,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Lines           []LineData      `json:"lines"`
	FailedProductID int64           `json:"failed_product_id,omitempty"`
	ErrorKind       string          `json:"error_kind"`
	Reason          string          `json:"reason"`
}

// LineData represents a committed cart line in events
type LineData struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Receipt represents a recorded purchase attempt with its committed lines
type Receipt struct {
	ID          string          `db:"id" json:"id"`
	EventID     string          `db:"event_id" json:"event_id"`
	SessionID   string          `db:"session_id" json:"session_id"`
	Username    string          `db:"username" json:"username"`
	Status      string          `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Reason      string          `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ReceiptLine represents one committed line of a receipt
type ReceiptLine struct {
	ID        int64           `db:"id" json:"id"`
	ReceiptID string          `db:"receipt_id" json:"receipt_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Receipt statuses
const (
	ReceiptStatusComplete = "COMPLETE"
	ReceiptStatusPartial  = "PARTIAL"
)

// LinesData converts cart lines into their event representation
func LinesData(lines []CartLine) []LineData {
	out := make([]LineData, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineData{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return out
}

// SumLines returns Σ quantity × unit price
func SumLines(lines []LineData) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
