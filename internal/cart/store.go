// Package cart holds the stock-aware cart of one browser session.
package cart

import (
	"sweet-shop/internal/models"

	"github.com/shopspring/decimal"
)

// Store maps product id to cart line, keeping insertion order.
//
// Every line satisfies 1 <= Quantity <= AvailableStock. A line that would
// drop to zero is removed instead. The ceiling is the stock seen at the last
// catalog read; the remote service re-checks it at purchase time.
//
// A Store has a single owner and is not safe for concurrent use.
type Store struct {
	lines map[int64]*models.CartLine
	order []int64
}

// New creates an empty cart
func New() *Store {
	return &Store{lines: make(map[int64]*models.CartLine)}
}

// Add puts one unit of p in the cart, or increments an existing line.
// Out-of-stock products are ignored.
func (s *Store) Add(p models.Product) {
	if l, ok := s.lines[p.ID]; ok {
		// keep the ceiling current with the product the user is looking at
		l.AvailableStock = p.Quantity
		if l.Quantity > l.AvailableStock {
			l.Quantity = l.AvailableStock
		}
		if l.Quantity <= 0 {
			s.Remove(p.ID)
			return
		}
		s.Increment(p.ID)
		return
	}

	qty := min(1, p.Quantity)
	if qty <= 0 {
		return
	}

	s.lines[p.ID] = &models.CartLine{
		ProductID:      p.ID,
		Name:           p.Name,
		Quantity:       qty,
		UnitPrice:      p.Price,
		AvailableStock: p.Quantity,
	}
	s.order = append(s.order, p.ID)
}

// Increment adds one unit, stopping at the stock ceiling
func (s *Store) Increment(productID int64) {
	l, ok := s.lines[productID]
	if !ok {
		return
	}
	l.Quantity = min(l.Quantity+1, l.AvailableStock)
}

// Decrement removes one unit; the line goes away when it reaches zero
func (s *Store) Decrement(productID int64) {
	l, ok := s.lines[productID]
	if !ok {
		return
	}
	l.Quantity--
	if l.Quantity <= 0 {
		s.Remove(productID)
	}
}

// Remove drops the line if present
func (s *Store) Remove(productID int64) {
	if _, ok := s.lines[productID]; !ok {
		return
	}
	delete(s.lines, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear empties the cart
func (s *Store) Clear() {
	s.lines = make(map[int64]*models.CartLine)
	s.order = nil
}

// Lines returns copies of the lines in insertion order
func (s *Store) Lines() []models.CartLine {
	out := make([]models.CartLine, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.lines[id])
	}
	return out
}

// Len returns the number of lines
func (s *Store) Len() int {
	return len(s.order)
}

// Quantity returns the in-cart quantity of a product, 0 when absent
func (s *Store) Quantity(productID int64) int {
	if l, ok := s.lines[productID]; ok {
		return l.Quantity
	}
	return 0
}

// TotalQuantity returns Σ quantity
func (s *Store) TotalQuantity() int {
	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice returns Σ quantity × unit price
func (s *Store) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, id := range s.order {
		total = total.Add(s.lines[id].Subtotal())
	}
	return total
}

// SyncStock refreshes stock ceilings from a fresh catalog read. Lines above
// the new ceiling are clamped and lines whose product sold out are removed.
// Products missing from the read, such as ones filtered out, keep their line.
func (s *Store) SyncStock(products []models.Product) {
	for _, p := range products {
		l, ok := s.lines[p.ID]
		if !ok {
			continue
		}
		l.AvailableStock = p.Quantity
		if l.Quantity > p.Quantity {
			l.Quantity = p.Quantity
		}
		if l.Quantity <= 0 {
			s.Remove(p.ID)
		}
	}
}

// Snapshot returns the lines for persistence
func (s *Store) Snapshot() []models.CartLine {
	return s.Lines()
}

// Restore rebuilds a cart from persisted lines. Lines violating the stock
// invariant are clamped or dropped, later duplicates of a product are ignored.
func Restore(lines []models.CartLine) *Store {
	s := New()
	for _, l := range lines {
		if _, dup := s.lines[l.ProductID]; dup {
			continue
		}
		qty := min(l.Quantity, l.AvailableStock)
		if qty <= 0 {
			continue
		}
		line := l
		line.Quantity = qty
		s.lines[l.ProductID] = &line
		s.order = append(s.order, l.ProductID)
	}
	return s
}
