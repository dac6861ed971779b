package models

import (
	"github.com/shopspring/decimal"
)

// Product represents a sweet in the remote catalog
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.Quantity > 0
}

// CartLine represents one product's quantity entry in the cart
type CartLine struct {
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	AvailableStock int             `json:"available_stock"`
}

// Subtotal returns quantity × unit price
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Role is a display hint derived from the session token
type Role string

// Session roles
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Session represents the resolved identity of the current browser session.
// Role is guest iff Token is empty. The remote service stays authoritative
// for authorization; Role only drives what the storefront shows.
type Session struct {
	Token       string `json:"-"`
	Role        Role   `json:"role"`
	DisplayName string `json:"username,omitempty"`
}

// GuestSession returns the canonical session without credentials
func GuestSession() Session {
	return Session{Role: RoleGuest}
}

// IsAuthenticated reports whether the session carries a token
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// IsAdmin reports whether the session was classified as elevated
func (s Session) IsAdmin() bool {
	return s.Token != "" && s.Role == RoleAdmin
}

// PurchaseOutcome is the result of one purchase attempt. It is never persisted.
type PurchaseOutcome struct {
	CommittedLines []CartLine `json:"committed_lines"`
	FailedLine     *CartLine  `json:"failed_line,omitempty"`
	Err            error      `json:"-"`
}
